package monitor

import (
	"time"
)

// Tag classifies an emitted line.
type Tag string

const (
	TagLog   Tag = "LOG"
	TagError Tag = "ERROR"
)

// LogLine is one emitted unit. Time is when the line was normalized on this
// side, not the provider's timestamp.
type LogLine struct {
	Time time.Time `json:"time"`
	Tag  Tag       `json:"tag"`
	Text string    `json:"text"`
	// Alert is set when the alert detector matched the line.
	Alert bool `json:"alert,omitempty"`
}

func (l LogLine) String() string {
	return "[" + string(l.Tag) + "] " + l.Text
}

// Reason is why a stream ended.
type Reason string

const (
	ReasonCompleted Reason = "completed"
	ReasonTimedOut  Reason = "timed_out"
	ReasonCancelled Reason = "cancelled"
)

// Result holds every line emitted by one Stream call and why it stopped.
type Result struct {
	Lines   []LogLine
	Reason  Reason
	Elapsed time.Duration
}
