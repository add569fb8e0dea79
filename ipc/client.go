package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

func newUnixClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
		Timeout: 5 * time.Second,
	}
}

// ListInstances queries every watcher socket in socketDir. Dead sockets are
// skipped.
func ListInstances(socketDir string) ([]StatusResponse, error) {
	pattern := filepath.Join(socketDir, "vastlogmon.*.sock")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var instances []StatusResponse
	for _, socketPath := range matches {
		status, err := queryStatus(socketPath)
		if err != nil {
			continue
		}
		instances = append(instances, *status)
	}
	return instances, nil
}

func queryStatus(socketPath string) (*StatusResponse, error) {
	client := newUnixClient(socketPath)
	// URL host is ignored by unix dialer, but scheme must be http
	resp, err := client.Get("http://unix/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status: %s", resp.Status)
	}
	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RequestReload asks a running watcher to re-read its config file.
func RequestReload(socketPath string) error {
	client := newUnixClient(socketPath)
	resp, err := client.Post("http://unix/reload", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
