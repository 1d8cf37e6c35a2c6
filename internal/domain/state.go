package domain

import "time"

type State string

const (
	StateIdle       State = "IDLE"
	StateExtracting State = "EXTRACTING"
	StateSaving     State = "SAVING"
	StateSleeping   State = "SLEEPING"
	StateStopped    State = "STOPPED"
)

// CycleReport summarises one extract-then-persist pass.
type CycleReport struct {
	CycleID    string        `json:"cycle_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Extracted  int           `json:"extracted"`
	Saved      int           `json:"saved"`
	Failed     int           `json:"failed"`
	Error      string        `json:"error,omitempty"` // extraction or cycle-level failure
	ObservedAt time.Time     `json:"observed_at"`
}

// OK reports whether extraction succeeded and every row was saved.
func (r CycleReport) OK() bool {
	return r.Error == "" && r.Failed == 0
}
