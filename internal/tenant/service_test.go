package tenant

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestResolveReturnsActiveTenant(t *testing.T) {
	service, db := newTestService(t)
	seed := Tenant{ID: "tenant-1", Name: "Acme Machining", Active: true}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}

	resolved, err := service.Resolve(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Name != "Acme Machining" {
		t.Fatalf("unexpected tenant %+v", resolved)
	}
}

func TestResolveRejectsUnknownTenant(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Resolve(context.Background(), "tenant-missing")
	if !errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("expected ErrUnknownTenant, got %v", err)
	}
}

func TestResolveRejectsInactiveTenant(t *testing.T) {
	service, db := newTestService(t)
	seed := Tenant{ID: "tenant-2", Name: "Dormant", Active: false}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}

	_, err := service.Resolve(context.Background(), "tenant-2")
	if !errors.Is(err, ErrInactiveTenant) {
		t.Fatalf("expected ErrInactiveTenant, got %v", err)
	}
}

func TestResolveCachesActiveTenants(t *testing.T) {
	service, db := newTestService(t)
	seed := Tenant{ID: "tenant-3", Name: "Cached", Active: true}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}

	if _, err := service.Resolve(context.Background(), "tenant-3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Remove the row; the cached entry must still resolve.
	if err := db.Delete(&Tenant{}, "id = ?", "tenant-3").Error; err != nil {
		t.Fatalf("failed to delete tenant: %v", err)
	}
	resolved, err := service.Resolve(context.Background(), "tenant-3")
	if err != nil {
		t.Fatalf("expected cached resolution, got %v", err)
	}
	if resolved.ID != "tenant-3" {
		t.Fatalf("unexpected cached tenant %+v", resolved)
	}
}

func TestTouchLastSyncStampsTenant(t *testing.T) {
	service, db := newTestService(t)
	seed := Tenant{ID: "tenant-4", Name: "Stamped", Active: true}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}

	service.TouchLastSync(context.Background(), "tenant-4")

	var stored Tenant
	if err := db.Where("id = ?", "tenant-4").First(&stored).Error; err != nil {
		t.Fatalf("failed to reload tenant: %v", err)
	}
	if stored.LastSyncAt == nil {
		t.Fatalf("expected last sync timestamp to be set")
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:tenant_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Tenant{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1760000000, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("failed to construct tenant service: %v", err)
	}
	return service, db
}
