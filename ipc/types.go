package ipc

import (
	"fmt"
	"time"

	"github.com/angch/vastlogmon/config"
	"github.com/angch/vastlogmon/monitor"
)

type StatusResponse struct {
	PID         int            `json:"pid"`
	StartTime   time.Time      `json:"start_time"`
	Version     string         `json:"version"` // from config
	MemoryAlloc uint64         `json:"memory_alloc"`
	Stream      monitor.Status `json:"stream"`
	Config      *config.Config `json:"config"`
}

// SocketName is the file name a watcher with the given pid listens on.
func SocketName(pid int) string {
	return fmt.Sprintf("vastlogmon.%d.sock", pid)
}
