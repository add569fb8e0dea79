package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angch/vastlogmon/detectors"
	"github.com/angch/vastlogmon/logger"
	"github.com/angch/vastlogmon/metrics"
	"github.com/angch/vastlogmon/sources"
	"go.uber.org/zap"
)

// State is the externally visible phase of a streamer.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

// Status is a point-in-time snapshot served over the IPC socket.
type Status struct {
	Instance            string    `json:"instance"`
	Source              string    `json:"source"`
	State               State     `json:"state"`
	StartedAt           time.Time `json:"started_at,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LinesEmitted        int       `json:"lines_emitted"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

type Options struct {
	// Alert flags lines worth reporting, e.g. tracebacks. Optional.
	Alert detectors.Detector
}

// Streamer polls a LogSource until the workload prints its completion
// sentinel, the timeout elapses or the caller cancels.
type Streamer struct {
	Source   sources.LogSource
	Sink     Sink
	Alert    detectors.Detector
	Sentinel *detectors.SentinelDetector

	now func() time.Time

	mu     sync.Mutex
	status Status
}

// streamState lives for exactly one Stream call.
type streamState struct {
	start       time.Time
	cursor      time.Time
	lines       []LogLine
	accumulated []string
}

func New(source sources.LogSource, sink Sink, opts Options) (*Streamer, error) {
	if source == nil {
		return nil, fmt.Errorf("log source is required")
	}
	if sink == nil {
		sink = MultiSink{}
	}
	return &Streamer{
		Source:   source,
		Sink:     sink,
		Alert:    opts.Alert,
		Sentinel: detectors.NewCompletionDetector(),
		now:      time.Now,
		status:   Status{Source: source.Name(), State: StateIdle},
	}, nil
}

// Stream runs the poll loop. A timeout of zero means no limit. The returned
// error is only for invalid arguments; fetch failures are emitted as ERROR
// lines and never end the stream.
//
// Cancellation is observed before each fetch and while sleeping. A fetch in
// flight always runs to completion, bounded by the transport's own timeout.
func (s *Streamer) Stream(ctx context.Context, instanceID string, pollInterval, timeout time.Duration) (*Result, error) {
	if pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", pollInterval)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", timeout)
	}

	log := logger.Get(ctx).With("instance", instanceID, "source", s.Source.Name())
	fetchCtx := context.WithoutCancel(ctx)

	st := &streamState{start: s.now()}
	s.begin(instanceID, st.start)
	log.Infow("Streaming instance logs", "poll_interval", pollInterval, "timeout", timeout)

	for timeout == 0 || s.now().Sub(st.start) <= timeout {
		if ctx.Err() != nil {
			return s.finish(log, st, ReasonCancelled), nil
		}

		batch, err := s.Source.Fetch(fetchCtx, instanceID, st.cursor)
		if err != nil {
			metrics.FetchFailuresTotal.WithLabelValues(instanceID).Inc()
			log.Warnw("Log fetch failed", "error", err)
			s.emit(log, st, instanceID, LogLine{Time: s.now(), Tag: TagError, Text: err.Error()})
			s.recordFailure(err)
		} else {
			for _, raw := range batch {
				text := strings.TrimSpace(raw)
				if text == "" {
					continue
				}
				line := LogLine{Time: s.now(), Tag: TagLog, Text: text}
				if s.Alert != nil && s.Alert.Detect(text) {
					line.Alert = true
					metrics.AlertsTotal.WithLabelValues(instanceID).Inc()
				}
				s.emit(log, st, instanceID, line)
				st.accumulated = append(st.accumulated, text)
			}

			// Wall-clock watermark: assumes the provider filters on its own clock.
			st.cursor = s.now()
			s.recordSuccess(st.cursor)
			metrics.LastActivityTimestamp.WithLabelValues(instanceID).Set(float64(st.cursor.Unix()))

			if s.Sentinel.DetectAny(st.accumulated) {
				return s.finish(log, st, ReasonCompleted), nil
			}
		}

		if !sleepCtx(ctx, s.nextWait(st, pollInterval, timeout)) {
			return s.finish(log, st, ReasonCancelled), nil
		}
	}

	return s.finish(log, st, ReasonTimedOut), nil
}

func (s *Streamer) emit(log *zap.SugaredLogger, st *streamState, instanceID string, line LogLine) {
	st.lines = append(st.lines, line)
	metrics.LinesEmittedTotal.WithLabelValues(instanceID, string(line.Tag)).Inc()

	s.mu.Lock()
	s.status.LinesEmitted++
	s.mu.Unlock()

	if err := deliver(s.Sink, line); err != nil {
		metrics.SinkErrorsTotal.WithLabelValues(sinkName(s.Sink)).Inc()
		log.Warnw("Failed to deliver line to sink", "error", err)
	}
}

func (s *Streamer) finish(log *zap.SugaredLogger, st *streamState, reason Reason) *Result {
	res := &Result{
		Lines:   st.lines,
		Reason:  reason,
		Elapsed: s.now().Sub(st.start),
	}
	metrics.StreamTerminationsTotal.WithLabelValues(string(reason)).Inc()

	s.mu.Lock()
	s.status.State = State(reason)
	s.mu.Unlock()

	log.Infow("Stream finished", "reason", reason, "lines", len(res.Lines), "elapsed", res.Elapsed)
	return res
}

// Status returns a snapshot of the current or last stream.
func (s *Streamer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Streamer) begin(instanceID string, start time.Time) {
	s.mu.Lock()
	s.status = Status{
		Instance:  instanceID,
		Source:    s.Source.Name(),
		State:     StatePolling,
		StartedAt: start,
	}
	s.mu.Unlock()
}

func (s *Streamer) recordFailure(err error) {
	s.mu.Lock()
	s.status.ConsecutiveFailures++
	s.status.LastError = err.Error()
	s.mu.Unlock()
}

func (s *Streamer) recordSuccess(at time.Time) {
	s.mu.Lock()
	s.status.ConsecutiveFailures = 0
	s.status.LastSuccess = at
	s.mu.Unlock()
}

// sleepCtx waits for d and reports false if ctx was cancelled first.
// nextWait is the poll interval, shortened so that the stream wakes just past
// its deadline rather than a whole interval later.
func (s *Streamer) nextWait(st *streamState, pollInterval, timeout time.Duration) time.Duration {
	if timeout == 0 {
		return pollInterval
	}
	remaining := timeout - s.now().Sub(st.start)
	return min(pollInterval, max(remaining, 0)+time.Millisecond)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
