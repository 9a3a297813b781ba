package control

// Decision is the authoritative outcome of one decision cycle. Status is what
// gets written into the history row; SystemOn mirrors the mode (OFF is the
// only inactive mode).
type Decision struct {
	Status   string
	SystemOn bool
}

// Resolve combines the classifier output with the subject's control state into
// the single status the device and UI must observe. It is deterministic: the
// same (state, label, degraded) input always yields the same decision.
//
// MANUAL maps OPEN to exposed and both CLOSE and IDLE to sheltered, so a
// subject that switched to MANUAL without ever issuing a command gets the safe
// default. A degraded classifier in AUTO also falls back to sheltered rather
// than letting the sentinel label leak into history.
func Resolve(st State, predictedLabel string, degraded bool) Decision {
	switch st.Mode {
	case ModeManual:
		if st.ManualCommand == CommandOpen {
			return Decision{Status: StatusExposed, SystemOn: true}
		}
		return Decision{Status: StatusSheltered, SystemOn: true}
	case ModeOff:
		return Decision{Status: StatusSheltered, SystemOn: false}
	default: // AUTO
		if degraded || predictedLabel == "" {
			return Decision{Status: StatusSheltered, SystemOn: true}
		}
		return Decision{Status: predictedLabel, SystemOn: true}
	}
}

// SystemStatus renders a decision's on/off flag as the wire string.
func (d Decision) SystemStatus() string {
	if d.SystemOn {
		return SystemOn
	}
	return SystemOff
}
