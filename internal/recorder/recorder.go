package recorder

import "time"

// RunRecord holds the outcome of one scan.
type RunRecord struct {
	ID        string // uuid assigned by the scheduler
	AsOf      string
	Signature string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	FromCache bool
	Uptrends  []string
	Errors    []string
}

// RunSummary is a stored run without its symbol lists.
type RunSummary struct {
	ID        string
	AsOf      string
	Signature string
	StartedAt time.Time
	Total     int
	Uptrend   int
	Errors    int
	FromCache bool
}

// Recorder persists run history for analysis.
type Recorder interface {
	RecordRun(run *RunRecord) error
	Close() error
}
