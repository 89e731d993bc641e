// Package consolidate folds per-node traffic history in the panel
// database into a single cumulative row per node.
package consolidate

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/stellarfrp/panelsync/internal/datastore"
	"github.com/stellarfrp/panelsync/internal/errors"
)

// Consolidator merges the dated traffic rows of every tunnel node into one
// row at the latest observed date, carrying the summed totals, and deletes
// the superseded rows. The whole pass runs in one target transaction.
type Consolidator struct {
	target datastore.Target
	log    *slog.Logger
	now    func() time.Time
}

// Config configures the consolidator.
type Config struct {
	Target datastore.Target
	Logger *slog.Logger
	// Now supplies the record timestamp for rewritten rows; defaults to
	// time.Now.
	Now func() time.Time
}

// New creates a new consolidator.
func New(cfg *Config) *Consolidator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Consolidator{
		target: cfg.Target,
		log:    log,
		now:    now,
	}
}

// Result reports what a successful run did.
type Result struct {
	// Consolidated counts nodes whose history was folded into one row.
	Consolidated int
	// Removed counts superseded rows deleted.
	Removed int
}

// Run consolidates every node's traffic history. A failure on any node
// rolls back the whole pass. Re-running after a successful pass is a
// no-op: each node already has exactly one row, the sum of one row is
// itself, and nothing else remains to delete.
func (c *Consolidator) Run(ctx context.Context) (Result, error) {
	start := c.now()
	var result Result

	err := c.target.Transaction(ctx, func(tx *gorm.DB) error {
		nodes, err := distinctNodes(tx)
		if err != nil {
			return err
		}

		for _, node := range nodes {
			removed, err := c.consolidateNode(tx, node)
			if err != nil {
				return err
			}
			result.Consolidated++
			result.Removed += removed
		}
		return nil
	})
	if err != nil {
		return Result{}, errors.New(err).
			Component("consolidate").
			Category(errors.CategoryMigration).
			Context("operation", "traffic_consolidation").
			Build()
	}

	c.log.Info("traffic consolidation completed",
		"consolidated", result.Consolidated,
		"removed", result.Removed,
		"duration", time.Since(start))
	return result, nil
}

// distinctNodes returns every node name present in the traffic log.
func distinctNodes(tx *gorm.DB) ([]string, error) {
	var nodes []string
	err := tx.Model(&datastore.NodeTrafficLog{}).
		Distinct("node_name").
		Order("node_name ASC").
		Pluck("node_name", &nodes).Error
	if err != nil {
		return nil, errors.New(err).
			Component("consolidate").
			Category(errors.CategoryQuery).
			Context("operation", "list_nodes").
			Build()
	}
	return nodes, nil
}

// consolidateNode folds one node's rows into a single row at the maximum
// observed date. Traffic totals accumulate across every row, including
// the one already sitting at the maximum date.
func (c *Consolidator) consolidateNode(tx *gorm.DB, node string) (removed int, err error) {
	var rows []datastore.NodeTrafficLog
	err = tx.Where("node_name = ?", node).
		Order("record_date ASC").
		Find(&rows).Error
	if err != nil {
		return 0, queryError(err, "fetch_node_traffic", node)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	maxDate := rows[0].RecordDate
	var trafficIn, trafficOut int64
	for i := range rows {
		if rows[i].RecordDate > maxDate {
			maxDate = rows[i].RecordDate
		}
		trafficIn += rows[i].TrafficIn
		trafficOut += rows[i].TrafficOut
	}

	var existing datastore.NodeTrafficLog
	err = tx.Where("node_name = ? AND record_date = ?", node, maxDate).
		First(&existing).Error
	switch {
	case err == nil:
		err = tx.Model(&datastore.NodeTrafficLog{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"traffic_in":  trafficIn,
				"traffic_out": trafficOut,
				"record_time": c.now(),
			}).Error
		if err != nil {
			return 0, queryError(err, "update_node_traffic", node)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := datastore.NodeTrafficLog{
			NodeName:    node,
			TrafficIn:   trafficIn,
			TrafficOut:  trafficOut,
			OnlineCount: 0,
			RecordTime:  c.now(),
			RecordDate:  maxDate,
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, queryError(err, "insert_node_traffic", node)
		}
	default:
		return 0, queryError(err, "lookup_node_traffic", node)
	}

	del := tx.Where("node_name = ? AND record_date <> ?", node, maxDate).
		Delete(&datastore.NodeTrafficLog{})
	if del.Error != nil {
		return 0, queryError(del.Error, "delete_superseded_traffic", node)
	}

	c.log.Debug("consolidated node traffic",
		"node", node,
		"record_date", maxDate,
		"traffic_in", trafficIn,
		"traffic_out", trafficOut,
		"removed", del.RowsAffected)
	return int(del.RowsAffected), nil
}

func queryError(err error, operation, node string) error {
	return errors.New(err).
		Component("consolidate").
		Category(errors.CategoryQuery).
		Context("operation", operation).
		Context("node", node).
		Build()
}
