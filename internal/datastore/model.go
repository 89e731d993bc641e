package datastore

import (
	"time"
)

// LegacyUser is an account row in the legacy user database. The legacy
// store is read-only; nullable columns map to pointer fields.
type LegacyUser struct {
	ID                    uint64     `gorm:"column:id;primaryKey"`
	Username              string     `gorm:"column:username;uniqueIndex;size:64"`
	Password              string     `gorm:"column:password;size:255"`
	Email                 *string    `gorm:"column:email;size:255"`
	Type                  *string    `gorm:"column:type;size:16"`
	IsVerified            int        `gorm:"column:is_verified"`
	AuthCount             int        `gorm:"column:auth_count"`
	EncryptedIdentityInfo *string    `gorm:"column:encrypted_identity_info"`
	VIPTime               *time.Time `gorm:"column:VIPTime"`
	// autoCreateTime is disabled: the field name matches GORM's create
	// tracking convention, which would fill a NULL legacy timestamp on
	// insert. The legacy store is read-only and must round-trip NULLs.
	CreatedAt *time.Time `gorm:"column:created_at;autoCreateTime:false"`
}

// TableName overrides the table name used by LegacyUser.
func (LegacyUser) TableName() string {
	return "users"
}

// Account type values used by the legacy store.
const (
	AccountTypeVIP    = "VIP"
	AccountTypeNormal = "normal"
)

// User is an account row in the panel database.
//
// Token is owned by the panel: reconciliation never writes it on update,
// only the token hygiene pass or first creation may set it.
type User struct {
	ID                uint64     `gorm:"column:id;primaryKey"`
	Username          string     `gorm:"column:username;uniqueIndex;size:64"`
	Password          string     `gorm:"column:password;size:255"`
	Email             string     `gorm:"column:email;size:255"`
	RegisterTime      time.Time  `gorm:"column:register_time"`
	GroupID           int64      `gorm:"column:group_id"`
	IsVerified        int        `gorm:"column:is_verified"`
	VerifyInfo        string     `gorm:"column:verify_info"`
	VerifyCount       int        `gorm:"column:verify_count"`
	Status            int        `gorm:"column:status"`
	Token             string     `gorm:"column:token;size:64"`
	GroupTime         *time.Time `gorm:"column:group_time"`
	TunnelCount       int        `gorm:"column:tunnel_count"`
	Bandwidth         int        `gorm:"column:bandwidth"`
	TrafficQuota      int64      `gorm:"column:traffic_quota"`
	CheckinCount      int        `gorm:"column:checkin_count"`
	ContinuityCheckin int        `gorm:"column:continuity_checkin"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

// TableName overrides the table name used by User.
func (User) TableName() string {
	return "users"
}

// User status values in the panel database.
const (
	UserStatusDisabled = 0
	UserStatusEnabled  = 1
)

// NodeTrafficLog is a dated traffic record for one tunnel node in the panel
// database. (NodeName, RecordDate) is the natural key; after consolidation
// exactly one row per node remains.
type NodeTrafficLog struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	NodeName    string    `gorm:"column:node_name;size:64;index:idx_node_traffic_name_date"`
	TrafficIn   int64     `gorm:"column:traffic_in"`
	TrafficOut  int64     `gorm:"column:traffic_out"`
	OnlineCount int       `gorm:"column:online_count"`
	RecordTime  time.Time `gorm:"column:record_time"`
	RecordDate  string    `gorm:"column:record_date;size:10;index:idx_node_traffic_name_date"`
}

// TableName overrides the table name used by NodeTrafficLog.
func (NodeTrafficLog) TableName() string {
	return "node_traffic_log"
}
