package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jemuran-service/internal/control"
)

var ErrUserNotFound = errors.New("user not found")

type Repo struct {
	db *gorm.DB
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&User{}, &ControlState{}, &JemuranRecord{}); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repo) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) UserByDeviceKey(ctx context.Context, key string) (*User, error) {
	if key == "" {
		return nil, ErrUserNotFound
	}
	var u User
	if err := r.db.WithContext(ctx).First(&u, "device_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// LoadControlState returns the user's control state, lazily creating the
// AUTO/IDLE default on first access. The upsert keeps concurrent first
// accesses from racing each other into a duplicate-key error.
func (r *Repo) LoadControlState(ctx context.Context, userID uuid.UUID) (*ControlState, error) {
	var cs ControlState
	err := r.db.WithContext(ctx).First(&cs, "user_id = ?", userID).Error
	if err == nil {
		return &cs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	def := control.DefaultState()
	cs = ControlState{UserID: userID, Mode: string(def.Mode), ManualCommand: string(def.ManualCommand)}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&cs).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).First(&cs, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &cs, nil
}

// SetMode stores a new mode without touching the manual command, so the last
// intent survives AUTO/OFF detours. Idempotent by construction.
func (r *Repo) SetMode(ctx context.Context, userID uuid.UUID, mode control.Mode) (*ControlState, error) {
	if _, err := r.LoadControlState(ctx, userID); err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Model(&ControlState{}).
		Where("user_id = ?", userID).
		Update("mode", string(mode)).Error
	if err != nil {
		return nil, err
	}
	return r.LoadControlState(ctx, userID)
}

// SetManualCommand stores a new manual command. The mode is left alone: a
// command issued while not in MANUAL is stored but inert until MANUAL resumes.
func (r *Repo) SetManualCommand(ctx context.Context, userID uuid.UUID, cmd control.Command) (*ControlState, error) {
	if _, err := r.LoadControlState(ctx, userID); err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Model(&ControlState{}).
		Where("user_id = ?", userID).
		Update("manual_command", string(cmd)).Error
	if err != nil {
		return nil, err
	}
	return r.LoadControlState(ctx, userID)
}

// AppendHistory inserts one record. Reading and derived status land together
// inside the caller's transaction scope, never separately.
func (r *Repo) AppendHistory(ctx context.Context, rec *JemuranRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Waktu.IsZero() {
		rec.Waktu = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// LatestHistory returns the newest record for a user, or nil if none exists.
func (r *Repo) LatestHistory(ctx context.Context, userID uuid.UUID) (*JemuranRecord, error) {
	var rec JemuranRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("waktu desc").Order("id desc").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// HistoryWindow returns up to limit records, newest first. (waktu, id)
// ordering keeps rows with identical timestamps stable.
func (r *Repo) HistoryWindow(ctx context.Context, userID uuid.UUID, limit int) ([]JemuranRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	var rows []JemuranRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("waktu desc").Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PruneHistoryBefore deletes records older than the cutoff and reports how
// many went away. Used by the retention cron only.
func (r *Repo) PruneHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("waktu < ?", cutoff).Delete(&JemuranRecord{})
	return res.RowsAffected, res.Error
}

// Transaction runs fn against a transactional repo so multi-row writes commit
// or roll back as a unit.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}
