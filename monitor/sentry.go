package monitor

import (
	"sync"
	"time"

	"github.com/angch/vastlogmon/detectors"
	"github.com/angch/vastlogmon/sysstat"
	"github.com/getsentry/sentry-go"
)

const defaultErrorInterval = 5 * time.Minute

// SentrySink reports to Sentry. Fetch failures and alert lines become
// events. Every other line is kept as a breadcrumb so events carry the
// recent output of the job.
type SentrySink struct {
	Hub       *sentry.Hub
	Instance  string
	Collector *sysstat.Collector

	// Alert is the detector that flags alert lines. When it can extract
	// fields from a line they are attached to the event.
	Alert detectors.Detector

	// ErrorInterval throttles repeated identical fetch failures.
	ErrorInterval time.Duration

	mu          sync.Mutex
	lastError   string
	lastErrorAt time.Time
}

func NewSentrySink(hub *sentry.Hub, instance string, collector *sysstat.Collector) *SentrySink {
	return &SentrySink{
		Hub:           hub,
		Instance:      instance,
		Collector:     collector,
		ErrorInterval: defaultErrorInterval,
	}
}

func (s *SentrySink) hub() *sentry.Hub {
	if s.Hub != nil {
		return s.Hub
	}
	return sentry.CurrentHub()
}

func (s *SentrySink) Emit(line LogLine) error {
	switch {
	case line.Tag == TagError:
		if s.shouldReportError(line) {
			s.capture(line, sentry.LevelWarning)
		}
	case line.Alert:
		s.capture(line, sentry.LevelError)
	}

	s.hub().AddBreadcrumb(&sentry.Breadcrumb{
		Category:  "log",
		Message:   line.Text,
		Level:     breadcrumbLevel(line),
		Timestamp: line.Time,
	}, nil)
	return nil
}

func (s *SentrySink) shouldReportError(line LogLine) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line.Text == s.lastError && line.Time.Sub(s.lastErrorAt) < s.ErrorInterval {
		return false
	}
	s.lastError = line.Text
	s.lastErrorAt = line.Time
	return true
}

func (s *SentrySink) capture(line LogLine, level sentry.Level) {
	hub := s.hub()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		scope.SetTag("instance", s.Instance)
		scope.SetTag("line_tag", string(line.Tag))
		scope.SetExtra("captured_at", line.Time.Format(time.RFC3339Nano))

		if state := s.Collector.GetState(); state != nil {
			scope.SetContext("Monitor Host", state.ToMap())
		}
		if line.Alert {
			if ex, ok := s.Alert.(detectors.ContextExtractor); ok {
				if fields := ex.GetContext(line.Text); fields != nil {
					scope.SetContext("Log Context", fields)
				}
			}
		}

		hub.CaptureMessage(line.Text)
	})
}

// ReportResult records how the stream ended. Only timeouts are reported as
// events; a completed or cancelled stream is not an incident.
func (s *SentrySink) ReportResult(res *Result) {
	if res == nil || res.Reason != ReasonTimedOut {
		return
	}
	hub := s.hub()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("instance", s.Instance)
		scope.SetTag("reason", string(res.Reason))
		scope.SetExtra("lines_emitted", len(res.Lines))
		scope.SetExtra("elapsed", res.Elapsed.String())
		hub.CaptureMessage("Instance " + s.Instance + " did not report completion before the timeout")
	})
}

func breadcrumbLevel(line LogLine) sentry.Level {
	switch {
	case line.Tag == TagError, line.Alert:
		return sentry.LevelError
	default:
		return sentry.LevelInfo
	}
}
