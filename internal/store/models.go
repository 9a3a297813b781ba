package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// User anchors ownership: every control state row and history record belongs
// to a user. Login and session handling live outside this service; the device
// key authenticates sensor submissions from the owner's hardware.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	DeviceKey string    `gorm:"uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ControlState is the persisted per-user state machine. Exactly one row per
// user, created lazily with AUTO/IDLE on first access. The manual command is
// deliberately retained across mode switches.
type ControlState struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Mode          string    `gorm:"not null" json:"mode"`           // AUTO|MANUAL|OFF
	ManualCommand string    `gorm:"not null" json:"manual_command"` // OPEN|CLOSE|IDLE
	UpdatedAt     time.Time `json:"updated_at"`
}

// JemuranRecord is one append-only history row: the raw sensor reading plus
// the classifier label, its probability map, and the effective system status
// the resolver derived when the reading arrived.
type JemuranRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;index:idx_jemuran_user_waktu,priority:1;not null" json:"user_id"`
	Waktu          time.Time      `gorm:"index:idx_jemuran_user_waktu,priority:2;not null" json:"waktu"`
	Temperature    float64        `json:"temperature"`
	Humidity       float64        `json:"humidity"`
	RainValue      int            `json:"rain_value"`
	LdrValue       int            `json:"ldr_value"`
	StatusJemuran  string         `gorm:"not null" json:"status_jemuran"`
	StatusSystem   string         `gorm:"not null" json:"status_system"` // ON|OFF
	ReportedSystem *int           `json:"reported_system,omitempty"`     // firmware side channel, 0|1
	Probabilities  datatypes.JSON `gorm:"type:jsonb" json:"probabilities,omitempty"`
	Degraded       bool           `json:"degraded,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
