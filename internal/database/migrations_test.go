package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/eryxon3d/eryxon-sync/internal/syncengine"
	"go.uber.org/zap"
)

func TestOpenSQLiteIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrations.db")

	first, err := OpenSQLite(path, zap.NewNop())
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	sqlDB, err := first.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	second, err := OpenSQLite(path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	var count int64
	if err := second.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single migration ledger row, got %d", count)
	}
}

func TestExternalKeyIndexRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unique.db")
	db, err := OpenSQLite(path, zap.NewNop())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	now := time.Now().UTC()
	base := syncengine.Job{
		TenantID:       "tenant-1",
		JobNumber:      "J-1",
		ExternalSource: "erp",
		ExternalID:     "J-1",
		SyncedAt:       &now,
	}

	first := base
	first.ID = "job-a"
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("failed to insert first row: %v", err)
	}

	duplicate := base
	duplicate.ID = "job-b"
	if err := db.Create(&duplicate).Error; err == nil {
		t.Fatalf("expected duplicate external key to be rejected")
	}

	// A second tenant may reuse the same external key.
	otherTenant := base
	otherTenant.ID = "job-c"
	otherTenant.TenantID = "tenant-2"
	if err := db.Create(&otherTenant).Error; err != nil {
		t.Fatalf("expected distinct tenant to insert: %v", err)
	}
}

func TestExternalKeyIndexIgnoresInternalRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "internal.db")
	db, err := OpenSQLite(path, zap.NewNop())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	for _, id := range []string{"job-x", "job-y"} {
		row := syncengine.Job{
			ID:             id,
			TenantID:       "tenant-1",
			JobNumber:      "internal-" + id,
			ExternalSource: "",
			ExternalID:     "",
		}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("expected internally created row %s to insert: %v", id, err)
		}
	}
}
