package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrUnknownTenant indicates the token subject has no tenant row.
	ErrUnknownTenant = errors.New("tenant: unknown tenant")
	// ErrInactiveTenant indicates the tenant row exists but is disabled.
	ErrInactiveTenant = errors.New("tenant: tenant is inactive")
)

// ServiceConfig describes the dependencies required for tenant resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service resolves bearer-token subjects to active tenants. Resolution is on
// every request, so active tenant ids are cached in-process; deactivating a
// tenant takes effect on the next process restart.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the tenant resolution service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("tenant: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		cache: sync.Map{},
	}, nil
}

// Resolve returns the active tenant for the given token subject, or an error
// when the tenant is unknown or disabled.
func (s *Service) Resolve(ctx context.Context, tenantID string) (Tenant, error) {
	trimmed := strings.TrimSpace(tenantID)
	if trimmed == "" {
		return Tenant{}, ErrUnknownTenant
	}

	if cached, ok := s.cache.Load(trimmed); ok {
		if record, ok := cached.(Tenant); ok {
			return record, nil
		}
	}

	var record Tenant
	err := s.db.WithContext(ctx).
		Where("id = ?", trimmed).
		First(&record).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Tenant{}, ErrUnknownTenant
	}
	if err != nil {
		return Tenant{}, err
	}
	if !record.Active {
		return Tenant{}, ErrInactiveTenant
	}

	s.cache.Store(trimmed, record)
	return record, nil
}

// TouchLastSync records the most recent successful sync for the tenant.
// Best effort: a failed touch never fails the sync that triggered it.
func (s *Service) TouchLastSync(ctx context.Context, tenantID string) {
	now := s.now().UTC()
	_ = s.db.WithContext(ctx).Model(&Tenant{}).
		Where("id = ?", tenantID).
		Update("last_sync_at", now).
		Error
}
