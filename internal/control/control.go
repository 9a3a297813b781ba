package control

import (
	"errors"
	"strings"
)

// Mode is the operational policy governing how the clothesline status is derived.
type Mode string

const (
	ModeAuto   Mode = "AUTO"
	ModeManual Mode = "MANUAL"
	ModeOff    Mode = "OFF"
)

// Command is an operator-issued intent, only effective while in MANUAL mode.
// CommandIdle is the initial value and is never set directly by an operator.
type Command string

const (
	CommandOpen  Command = "OPEN"
	CommandClose Command = "CLOSE"
	CommandIdle  Command = "IDLE"
)

// Clothesline statuses. These match the labels the classifier was trained on.
const (
	StatusExposed   = "Terjemur"
	StatusSheltered = "Tertutup"
)

// System on/off strings as reported to the UI and stored in history rows.
const (
	SystemOn  = "ON"
	SystemOff = "OFF"
)

var (
	ErrInvalidMode    = errors.New("invalid mode")
	ErrInvalidCommand = errors.New("invalid command")
)

// State is a subject's current control state. The manual command is retained
// across mode switches: re-entering MANUAL resumes the last issued command
// rather than resetting to IDLE.
type State struct {
	Mode          Mode
	ManualCommand Command
}

// DefaultState is what a subject gets on first access.
func DefaultState() State {
	return State{Mode: ModeAuto, ManualCommand: CommandIdle}
}

// ParseMode validates an operator-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeManual:
		return ModeManual, nil
	case ModeOff:
		return ModeOff, nil
	}
	return "", ErrInvalidMode
}

// ParseCommand validates an operator-supplied manual command. IDLE is not
// accepted here: it exists only as the pre-first-command default.
func ParseCommand(s string) (Command, error) {
	switch Command(strings.ToUpper(strings.TrimSpace(s))) {
	case CommandOpen:
		return CommandOpen, nil
	case CommandClose:
		return CommandClose, nil
	}
	return "", ErrInvalidCommand
}
