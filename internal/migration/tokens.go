package migration

import (
	"strings"

	"gorm.io/gorm"

	"github.com/stellarfrp/panelsync/internal/datastore"
	"github.com/stellarfrp/panelsync/internal/errors"
)

// sanitizeTokens voids every non-empty panel token that starts with the
// known-bad prefix. It runs inside the reconciliation transaction, so a
// failure here rolls the user migration back too. Idempotent: a second
// pass finds only empty tokens and cleans nothing.
func sanitizeTokens(tx *gorm.DB, prefix string) (int, error) {
	if prefix == "" {
		return 0, nil
	}

	var users []datastore.User
	err := tx.Select("id", "username", "token").
		Where("token <> ''").
		Find(&users).Error
	if err != nil {
		return 0, errors.New(err).
			Component("migration").
			Category(errors.CategoryQuery).
			Context("operation", "scan_tokens").
			Build()
	}

	cleaned := 0
	for i := range users {
		if !strings.HasPrefix(users[i].Token, prefix) {
			continue
		}
		err := tx.Model(&datastore.User{}).
			Where("id = ?", users[i].ID).
			Update("token", "").Error
		if err != nil {
			return 0, errors.New(err).
				Component("migration").
				Category(errors.CategoryQuery).
				Context("operation", "void_token").
				Context("username", users[i].Username).
				Build()
		}
		cleaned++
	}

	return cleaned, nil
}
