package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angch/vastlogmon/logger"
	"github.com/angch/vastlogmon/metrics"
)

const (
	EndpointPrimary  = "primary"
	EndpointMetadata = "metadata"
	EndpointLegacy   = "legacy"
)

// Endpoints holds the provider path templates. "{id}" is replaced by the
// escaped instance id.
type Endpoints struct {
	Logs     string `yaml:"logs"`
	Instance string `yaml:"instance"`
	Legacy   string `yaml:"legacy"`
}

var DefaultEndpoints = Endpoints{
	Logs:     "/api/v0/instances/{id}/logs/",
	Instance: "/api/v0/instances/{id}/",
	Legacy:   "/api/v0/logs/",
}

// VastSource reads instance logs through a fixed fallback chain:
// the logs endpoint, then instance metadata, then the legacy endpoint.
type VastSource struct {
	name      string
	transport Transport
	endpoints Endpoints
}

func NewVastSource(name string, t Transport, endpoints Endpoints) *VastSource {
	if endpoints.Logs == "" {
		endpoints.Logs = DefaultEndpoints.Logs
	}
	if endpoints.Instance == "" {
		endpoints.Instance = DefaultEndpoints.Instance
	}
	if endpoints.Legacy == "" {
		endpoints.Legacy = DefaultEndpoints.Legacy
	}
	return &VastSource{
		name:      name,
		transport: t,
		endpoints: endpoints,
	}
}

func (s *VastSource) Name() string {
	return s.name
}

func (s *VastSource) Fetch(ctx context.Context, instanceID string, since time.Time) ([]string, error) {
	log := logger.Get(ctx)

	lines, primaryErr := s.fetchPrimary(ctx, instanceID, since)
	if primaryErr == nil {
		return lines, nil
	}
	log.Debugw("Primary log endpoint failed", "instance", instanceID, "error", primaryErr.Err)

	lines, found, metaErr := s.fetchMetadata(ctx, instanceID)
	if metaErr != nil {
		// Both independent surfaces are down; the legacy one will not help.
		return nil, newFetchError(primaryErr, metaErr)
	}
	if found {
		return lines, nil
	}
	log.Debugw("Instance metadata carries no logs, trying legacy endpoint", "instance", instanceID)

	lines, legacyErr := s.fetchLegacy(ctx, instanceID)
	if legacyErr != nil {
		return nil, newFetchError(primaryErr, legacyErr)
	}
	return lines, nil
}

func (s *VastSource) fetchPrimary(ctx context.Context, id string, since time.Time) ([]string, *EndpointError) {
	var query url.Values
	if !since.IsZero() {
		query = url.Values{}
		query.Set("since", formatSince(since))
	}

	body, err := s.transport.Get(ctx, expandPath(s.endpoints.Logs, id), query)
	if err != nil {
		return nil, s.fail(EndpointPrimary, err)
	}
	lines, err := normalizeLogBody(body)
	if err != nil {
		return nil, s.fail(EndpointPrimary, err)
	}
	recordAttempt(EndpointPrimary, "ok")
	return lines, nil
}

func (s *VastSource) fetchMetadata(ctx context.Context, id string) ([]string, bool, *EndpointError) {
	body, err := s.transport.Get(ctx, expandPath(s.endpoints.Instance, id), nil)
	if err != nil {
		return nil, false, s.fail(EndpointMetadata, err)
	}
	lines, found, err := metadataLogs(body)
	if err != nil {
		return nil, false, s.fail(EndpointMetadata, err)
	}
	if !found {
		recordAttempt(EndpointMetadata, "no_logs")
		return nil, false, nil
	}
	recordAttempt(EndpointMetadata, "ok")
	return lines, true, nil
}

func (s *VastSource) fetchLegacy(ctx context.Context, id string) ([]string, *EndpointError) {
	query := url.Values{}
	query.Set("instance_id", id)

	body, err := s.transport.Get(ctx, expandPath(s.endpoints.Legacy, id), query)
	if err != nil {
		return nil, s.fail(EndpointLegacy, err)
	}
	lines, err := legacyLogs(body)
	if err != nil {
		return nil, s.fail(EndpointLegacy, err)
	}
	recordAttempt(EndpointLegacy, "ok")
	return lines, nil
}

func (s *VastSource) fail(endpoint string, err error) *EndpointError {
	recordAttempt(endpoint, "error")
	return &EndpointError{Endpoint: endpoint + " endpoint", Err: err}
}

func recordAttempt(endpoint, result string) {
	metrics.FetchAttemptsTotal.WithLabelValues(endpoint, result).Inc()
}

func expandPath(tpl, id string) string {
	return strings.ReplaceAll(tpl, "{id}", url.PathEscape(id))
}

// formatSince renders the cursor as fractional unix seconds.
func formatSince(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', 3, 64)
}
