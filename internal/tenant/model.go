package tenant

import "time"

// Tenant is the isolation boundary every synced record is scoped to. Rows are
// provisioned by the admin surface; the sync engine only resolves them.
type Tenant struct {
	ID         string     `gorm:"column:id;primaryKey;size:190;not null"`
	Name       string     `gorm:"column:name;size:320;not null"`
	Active     bool       `gorm:"column:active;not null;default:true"`
	LastSyncAt *time.Time `gorm:"column:last_sync_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing tenants.
func (Tenant) TableName() string {
	return "tenants"
}
