package registry

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/vicare-bridge/internal/infrastructure/database"
	_ "github.com/nerrad567/vicare-bridge/migrations"
)

// setupTestRepo opens a migrated SQLite database in a temp directory.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "registry.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func testEntity(id string) *Entity {
	return &Entity{
		ID:          id,
		DeviceID:    "1/gw/0",
		Platform:    "sensor",
		Key:         "outside_temperature",
		Name:        "ViCare Outside Temperature",
		Unit:        "°C",
		DeviceClass: "temperature",
	}
}

func TestSQLiteRepository_UpsertAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertEntity(ctx, testEntity("1/gw/0/outside_temperature")); err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}
	got, err := repo.GetEntity(ctx, "1/gw/0/outside_temperature")
	if err != nil {
		t.Fatalf("GetEntity() error = %v", err)
	}
	if got.Name != "ViCare Outside Temperature" || got.Unit != "°C" || got.Available {
		t.Errorf("GetEntity() = %+v", got)
	}
	if string(got.State) != "{}" {
		t.Errorf("State = %s, want {}", got.State)
	}

	if _, err := repo.GetEntity(ctx, "missing"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("GetEntity(missing) error = %v, want ErrEntityNotFound", err)
	}
}

func TestSQLiteRepository_UpsertKeepsState(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	id := "1/gw/0/outside_temperature"

	if err := repo.UpsertEntity(ctx, testEntity(id)); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.UpdateEntityState(ctx, id, json.RawMessage(`{"value":8.5}`), true, at); err != nil {
		t.Fatalf("UpdateEntityState() error = %v", err)
	}

	renamed := testEntity(id)
	renamed.Name = "ViCare Outdoor"
	if err := repo.UpsertEntity(ctx, renamed); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetEntity(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "ViCare Outdoor" {
		t.Errorf("Name = %q, want refreshed name", got.Name)
	}
	if string(got.State) != `{"value":8.5}` || !got.Available {
		t.Errorf("state = %s available=%v, want kept", got.State, got.Available)
	}
	if got.StateUpdatedAt == nil || !got.StateUpdatedAt.Equal(at) {
		t.Errorf("StateUpdatedAt = %v, want %v", got.StateUpdatedAt, at)
	}
}

func TestSQLiteRepository_Validation(t *testing.T) {
	repo := setupTestRepo(t)
	err := repo.UpsertEntity(context.Background(), &Entity{ID: "x"})
	if !errors.Is(err, ErrInvalidEntity) {
		t.Errorf("UpsertEntity() error = %v, want ErrInvalidEntity", err)
	}
}

func TestSQLiteRepository_UpdateStateMissing(t *testing.T) {
	repo := setupTestRepo(t)
	err := repo.UpdateEntityState(context.Background(), "missing", json.RawMessage(`{}`), true, time.Now())
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("error = %v, want ErrEntityNotFound", err)
	}
}

func TestSQLiteRepository_Devices(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seen := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	d := &Device{
		ID:             "1/gw/0",
		InstallationID: "1",
		GatewaySerial:  "gw",
		DeviceID:       "0",
		Model:          "E3_Vitodens_100_0421",
		Roles:          []string{"type:boiler", "type:heating"},
		LastSeen:       &seen,
	}
	if err := repo.UpsertDevice(ctx, d); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}
	d.Model = "E3_Vitodens_200"
	if err := repo.UpsertDevice(ctx, d); err != nil {
		t.Fatal(err)
	}

	devices, err := repo.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len = %d, want 1", len(devices))
	}
	got := devices[0]
	if got.Model != "E3_Vitodens_200" || len(got.Roles) != 2 || got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Errorf("device = %+v", got)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	if err := repo.UpsertEntity(ctx, testEntity("a")); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteEntity(ctx, "a"); err != nil {
		t.Fatalf("DeleteEntity() error = %v", err)
	}
	if err := repo.DeleteEntity(ctx, "a"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("second delete error = %v, want ErrEntityNotFound", err)
	}
}
