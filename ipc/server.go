package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/angch/vastlogmon/config"
	"github.com/angch/vastlogmon/logger"
	"github.com/angch/vastlogmon/monitor"
)

// StartServer serves /status and /reload on a unix socket until ctx is done.
// statusFunc and reloadFunc may be nil.
func StartServer(ctx context.Context, socketPath string, cfg *config.Config, statusFunc func() monitor.Status, reloadFunc func() error) error {
	// Ensure socket file is removed before listening, in case of crash/restart
	os.Remove(socketPath)

	listener, err := listenSecure("unix", socketPath)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()

	startTime := time.Now()

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		status := StatusResponse{
			PID:         os.Getpid(),
			StartTime:   startTime,
			Version:     cfg.Sentry.Release,
			MemoryAlloc: m.Alloc,
			Config:      cfg.Redacted(),
		}
		if statusFunc != nil {
			status.Stream = statusFunc()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	mux.HandleFunc("/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if reloadFunc == nil {
			http.Error(w, "Reload not supported", http.StatusNotImplemented)
			return
		}
		if err := reloadFunc(); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Reloaded"))
	})

	server := &http.Server{
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		os.Remove(socketPath)
	}()

	logger.Get(ctx).Debugw("IPC server listening", "socket", socketPath)

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
