// Command vast-mock serves a flaky imitation of the provider's log API for
// manual runs of vastlogmon:
//
//	go run ./cmd/vast-mock --steps 20 --fail-every 5
//	vastlogmon --base-url http://127.0.0.1:8081 --instance 1 --poll-interval 1
//
// Each poll rotates the response shape across the primary, metadata and
// legacy endpoints, and every --fail-every polls all of them fail. After
// --steps lines the completion sentinel is printed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
)

const sentinel = "VASTAI_PIPELINE_COMPLETED_SUCCESSFULLY"

var (
	addrFlag      = flag.String("addr", ":8081", "Listen address")
	apiKeyFlag    = flag.String("api-key", "", "Require this bearer token (empty accepts any)")
	stepsFlag     = flag.Int("steps", 20, "Log lines to print before the completion sentinel")
	batchFlag     = flag.Int("batch", 3, "Lines added per poll")
	failEveryFlag = flag.Int("fail-every", 5, "Fail every endpoint on every Nth poll (0 never)")
)

type mode int

const (
	modeRaw mode = iota
	modeArray
	modeMetadata
	modeLegacy
	modeFail
)

func (m mode) String() string {
	return [...]string{"raw", "array", "metadata", "legacy", "fail"}[m]
}

// instanceState is the simulated job on one instance. The primary endpoint
// starts a poll and decides which endpoint will answer it.
type instanceState struct {
	polls   int
	emitted int
	mode    mode
	pending []string
}

type Provider struct {
	steps     int
	batch     int
	failEvery int

	mu        sync.Mutex
	instances map[string]*instanceState
	requests  []string
}

func NewProvider(steps, batch, failEvery int) *Provider {
	return &Provider{
		steps:     steps,
		batch:     batch,
		failEvery: failEvery,
		instances: make(map[string]*instanceState),
	}
}

func (p *Provider) record(r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r.Method+" "+r.URL.RequestURI())
	p.mu.Unlock()
}

func (p *Provider) instance(id string) *instanceState {
	st, ok := p.instances[id]
	if !ok {
		st = &instanceState{}
		p.instances[id] = st
	}
	return st
}

// nextBatch produces the lines that became available since the last poll.
func (p *Provider) nextBatch(st *instanceState) []string {
	if st.emitted >= p.steps {
		return []string{sentinel}
	}
	var lines []string
	for i := 0; i < p.batch && st.emitted < p.steps; i++ {
		st.emitted++
		lines = append(lines, fmt.Sprintf("step %d/%d loss=%.3f", st.emitted, p.steps, 1/float64(st.emitted)+rand.Float64()/100))
	}
	if st.emitted >= p.steps {
		lines = append(lines, "", sentinel)
	}
	return lines
}

func (p *Provider) handleLogs(w http.ResponseWriter, r *http.Request) {
	p.record(r)
	p.mu.Lock()
	st := p.instance(r.PathValue("id"))
	st.polls++
	st.mode = mode(st.polls % 4)
	if p.failEvery > 0 && st.polls%p.failEvery == 0 {
		st.mode = modeFail
	}
	st.pending = nil
	if st.mode != modeFail {
		st.pending = p.nextBatch(st)
	}
	m, pending := st.mode, st.pending
	p.mu.Unlock()

	log.Printf("poll %s: mode=%s lines=%d", r.PathValue("id"), m, len(pending))

	switch m {
	case modeRaw:
		writeJSON(w, http.StatusOK, map[string]string{"raw": strings.Join(pending, "\r\n")})
	case modeArray:
		writeJSON(w, http.StatusOK, pending)
	case modeMetadata:
		http.Error(w, "log service unavailable", http.StatusServiceUnavailable)
	case modeLegacy:
		http.NotFound(w, r)
	default:
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
}

func (p *Provider) handleInstance(w http.ResponseWriter, r *http.Request) {
	p.record(r)
	p.mu.Lock()
	st := p.instance(r.PathValue("id"))
	m, pending := st.mode, st.pending
	p.mu.Unlock()

	switch m {
	case modeMetadata:
		writeJSON(w, http.StatusOK, map[string]any{
			"instances": map[string]any{"id": r.PathValue("id"), "logs": pending},
		})
	case modeFail:
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"instances": map[string]any{"id": r.PathValue("id"), "actual_status": "running"},
		})
	}
}

func (p *Provider) handleLegacy(w http.ResponseWriter, r *http.Request) {
	p.record(r)
	p.mu.Lock()
	st := p.instance(r.URL.Query().Get("instance_id"))
	pending := st.pending
	p.mu.Unlock()

	if pending == nil {
		pending = []string{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (p *Provider) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p.mu.Lock()
		reqs := append([]string(nil), p.requests...)
		p.mu.Unlock()
		writeJSON(w, http.StatusOK, reqs)
	case http.MethodDelete:
		p.mu.Lock()
		p.requests = nil
		p.instances = make(map[string]*instanceState)
		p.mu.Unlock()
		log.Println("Cleared all requests and instances")
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (p *Provider) Handler(apiKey string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v0/instances/{id}/logs/{$}", p.handleLogs)
	mux.HandleFunc("GET /api/v0/instances/{id}/{$}", p.handleInstance)
	mux.HandleFunc("GET /api/v0/logs/{$}", p.handleLegacy)
	mux.HandleFunc("/requests", p.handleRequests)

	if apiKey == "" {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/requests" && r.Header.Get("Authorization") != "Bearer "+apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": true, "msg": "invalid api key"})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func main() {
	flag.Parse()

	p := NewProvider(*stepsFlag, *batchFlag, *failEveryFlag)

	log.Printf("Vast mock provider listening on %s", *addrFlag)
	if err := http.ListenAndServe(*addrFlag, p.Handler(*apiKeyFlag)); err != nil {
		log.Fatal(err)
	}
}
