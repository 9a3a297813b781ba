package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"jemuran-service/internal/control"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	// Use a unique in-memory DB per test to avoid cross-test contamination.
	dsn := "file:store_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestLoadControlState_LazyDefault(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	cs, err := repo.LoadControlState(ctx, userID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cs.Mode != string(control.ModeAuto) || cs.ManualCommand != string(control.CommandIdle) {
		t.Fatalf("expected AUTO/IDLE default, got %s/%s", cs.Mode, cs.ManualCommand)
	}

	// Second access must return the persisted row, not create another.
	again, err := repo.LoadControlState(ctx, userID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.UserID != userID {
		t.Fatalf("unexpected user id: %s", again.UserID)
	}
}

func TestSetMode_PreservesManualCommand(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := repo.SetManualCommand(ctx, userID, control.CommandClose); err != nil {
		t.Fatalf("set command: %v", err)
	}
	if _, err := repo.SetMode(ctx, userID, control.ModeAuto); err != nil {
		t.Fatalf("set mode auto: %v", err)
	}
	cs, err := repo.SetMode(ctx, userID, control.ModeManual)
	if err != nil {
		t.Fatalf("set mode manual: %v", err)
	}
	if cs.ManualCommand != string(control.CommandClose) {
		t.Fatalf("manual command must survive mode switches, got %s", cs.ManualCommand)
	}
}

func TestSetMode_Idempotent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		cs, err := repo.SetMode(ctx, userID, control.ModeOff)
		if err != nil {
			t.Fatalf("set mode (call %d): %v", i+1, err)
		}
		if cs.Mode != string(control.ModeOff) {
			t.Fatalf("expected OFF, got %s", cs.Mode)
		}
	}
}

func TestHistoryWindow_NewestFirst(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := &JemuranRecord{
			UserID:        userID,
			Waktu:         base.Add(time.Duration(i) * time.Minute),
			Temperature:   25,
			Humidity:      80,
			RainValue:     i,
			StatusJemuran: control.StatusSheltered,
			StatusSystem:  control.SystemOn,
		}
		if err := repo.AppendHistory(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rows, err := repo.HistoryWindow(ctx, userID, 2)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Waktu.After(rows[1].Waktu) {
		t.Fatalf("expected newest first, got %v then %v", rows[0].Waktu, rows[1].Waktu)
	}

	latest, err := repo.LatestHistory(ctx, userID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.RainValue != 2 {
		t.Fatalf("expected newest record, got %+v", latest)
	}
}

func TestLatestHistory_EmptyIsNil(t *testing.T) {
	repo := openTestRepo(t)
	latest, err := repo.LatestHistory(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil for empty history, got %+v", latest)
	}
}

func TestPruneHistoryBefore(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	old := &JemuranRecord{UserID: userID, Waktu: now.AddDate(0, 0, -40), StatusJemuran: control.StatusSheltered, StatusSystem: control.SystemOn}
	fresh := &JemuranRecord{UserID: userID, Waktu: now, StatusJemuran: control.StatusExposed, StatusSystem: control.SystemOn}
	for _, rec := range []*JemuranRecord{old, fresh} {
		if err := repo.AppendHistory(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := repo.PruneHistoryBefore(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned row, got %d", n)
	}
	rows, err := repo.HistoryWindow(ctx, userID, 10)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(rows) != 1 || rows[0].StatusJemuran != control.StatusExposed {
		t.Fatalf("expected only the fresh record, got %+v", rows)
	}
}

func TestUserByDeviceKey(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	u := &User{Username: "budi", DeviceKey: "jemuran-key-1"}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := repo.UserByDeviceKey(ctx, "jemuran-key-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected %s, got %s", u.ID, got.ID)
	}

	if _, err := repo.UserByDeviceKey(ctx, "nope"); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
