package engine

import "time"

// Mode selects what a run does.
type Mode string

const (
	ModePull          Mode = "pull"
	ModePush          Mode = "push"
	ModeBidirectional Mode = "bidirectional"
)

// Options control a single run.
type Options struct {
	Mode   Mode
	DryRun bool
	Limit  int  // truncate the source query, 0 = no limit
	Force  bool // ignore the stored cursor, full resync
}

// PhaseReport summarizes one direction of a run.
type PhaseReport struct {
	Direction      string    `json:"direction"`
	Queried        int       `json:"queried"`
	Transformed    int       `json:"transformed"`
	Skipped        int       `json:"skipped"`
	EnumDefaults   int       `json:"enum_defaults"`
	Conflicts      int       `json:"conflicts"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	SkipSample     []string  `json:"skip_sample,omitempty"`
	FailureSample  []string  `json:"failure_sample,omitempty"`
	CursorAdvanced bool      `json:"cursor_advanced"`
	Cursor         time.Time `json:"cursor,omitempty"`
}

// Report is the run summary returned to callers and persisted in run
// history.
type Report struct {
	RunID      string        `json:"run_id"`
	Entity     string        `json:"entity"`
	Mode       Mode          `json:"mode"`
	DryRun     bool          `json:"dry_run"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Pull       *PhaseReport  `json:"pull,omitempty"`
	Push       *PhaseReport  `json:"push,omitempty"`
}

// TotalFailed sums failures across phases.
func (r *Report) TotalFailed() int {
	n := 0
	if r.Pull != nil {
		n += r.Pull.Failed
	}
	if r.Push != nil {
		n += r.Push.Failed
	}
	return n
}
