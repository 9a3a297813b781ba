package control

// Projection is the externally visible system state served to the UI and to
// the polling device. Legacy clients only understand a binary on/off plus a
// two-valued mode, so OFF is flattened to "AUTO, but inactive"; RawMode keeps
// the true three-valued mode for clients that can handle it.
type Projection struct {
	SystemOn bool   `json:"system_on"`
	Mode     Mode   `json:"mode"`
	RawMode  Mode   `json:"raw_mode"`
	Status   string `json:"status"`
}

// Project derives the projection from the current control state and the status
// of the latest history record. It is a pure function: no queries, no side
// effects, so every consumer computes the same answer from the same inputs.
func Project(st State, latestStatus string) Projection {
	p := Projection{RawMode: st.Mode, Status: latestStatus}
	switch st.Mode {
	case ModeOff:
		p.SystemOn = false
		p.Mode = ModeAuto
		p.Status = StatusSheltered
	case ModeManual:
		p.SystemOn = true
		p.Mode = ModeManual
	default:
		p.SystemOn = true
		p.Mode = ModeAuto
	}
	if p.Status == "" {
		p.Status = StatusSheltered
	}
	return p
}
