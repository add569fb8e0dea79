// Package sysstat samples the state of the host running the monitor. The
// snapshot is attached to Sentry events so a failed poll can be told apart
// from a starved or overloaded monitoring machine.
package sysstat

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/angch/vastlogmon/logger"
	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/tklauser/go-sysconf"
)

const topN = 5

type ProcessInfo struct {
	Pid     int     `json:"pid"`
	CPU     float64 `json:"cpu_percent"`
	RSS     uint64  `json:"rss_bytes"`
	Command string  `json:"command"`
}

// PressureInfo is the "some" line of a PSI resource file.
type PressureInfo struct {
	Avg10  float64 `json:"avg10"`
	Avg60  float64 `json:"avg60"`
	Avg300 float64 `json:"avg300"`
	Total  uint64  `json:"total"`
}

type HostState struct {
	Timestamp    time.Time              `json:"timestamp"`
	Hostname     string                 `json:"hostname"`
	Uptime       uint64                 `json:"uptime"`
	Load         *load.AvgStat          `json:"load,omitempty"`
	Memory       *mem.VirtualMemoryStat `json:"memory,omitempty"`
	IOPressure   *PressureInfo          `json:"io_pressure,omitempty"`
	TopProcesses []ProcessInfo          `json:"top_processes,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// ToMap converts the state for sentry.Scope.SetContext.
func (s *HostState) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"timestamp": s.Timestamp,
		"hostname":  s.Hostname,
		"uptime":    s.Uptime,
	}
	if s.Load != nil {
		m["load1"] = s.Load.Load1
		m["load5"] = s.Load.Load5
		m["load15"] = s.Load.Load15
	}
	if s.Memory != nil {
		m["memory_used_percent"] = s.Memory.UsedPercent
		m["memory_available"] = s.Memory.Available
	}
	if s.IOPressure != nil {
		m["io_pressure"] = *s.IOPressure
	}
	if len(s.TopProcesses) > 0 {
		procs := make([]map[string]interface{}, len(s.TopProcesses))
		for i, p := range s.TopProcesses {
			procs[i] = map[string]interface{}{
				"pid":     p.Pid,
				"cpu":     fmt.Sprintf("%.1f", p.CPU),
				"rss":     p.RSS,
				"command": p.Command,
			}
		}
		m["top_processes"] = procs
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	return m
}

type Collector struct {
	Interval time.Duration

	mu    sync.RWMutex
	state *HostState
}

func New() *Collector {
	return &Collector{Interval: time.Minute}
}

// GetState returns a copy of the latest sample, or nil before the first one.
func (c *Collector) GetState() *HostState {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil
	}
	cp := *c.state
	if c.state.IOPressure != nil {
		psi := *c.state.IOPressure
		cp.IOPressure = &psi
	}
	if c.state.TopProcesses != nil {
		cp.TopProcesses = append([]ProcessInfo(nil), c.state.TopProcesses...)
	}
	return &cp
}

// Run samples immediately and then every Interval until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	c.Collect()

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

func (c *Collector) Collect() {
	s := &HostState{Timestamp: time.Now()}
	s.Hostname, _ = os.Hostname()

	if u, err := host.Uptime(); err == nil {
		s.Uptime = u
	}
	if l, err := load.Avg(); err == nil {
		s.Load = l
	}
	if m, err := mem.VirtualMemory(); err == nil {
		s.Memory = m
	}

	fs, err := procfs.NewFS(procfs.DefaultMountPoint)
	if err != nil {
		s.Error = fmt.Sprintf("procfs unavailable: %v", err)
	} else {
		s.IOPressure = ioPressure(fs)
		procs, err := topProcesses(fs, s.Uptime)
		if err != nil {
			s.Error = fmt.Sprintf("process stats unavailable: %v", err)
			logger.Get(context.Background()).Debugw("Failed to collect process stats", "error", err)
		}
		s.TopProcesses = procs
	}

	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func clockTicks() float64 {
	if tck, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && tck > 0 {
		return float64(tck)
	}
	return 100
}

// ioPressure returns nil on kernels without PSI.
func ioPressure(fs procfs.FS) *PressureInfo {
	psi, err := fs.PSIStatsForResource("io")
	if err != nil || psi.Some == nil {
		return nil
	}
	return &PressureInfo{
		Avg10:  psi.Some.Avg10,
		Avg60:  psi.Some.Avg60,
		Avg300: psi.Some.Avg300,
		Total:  psi.Some.Total,
	}
}

// topProcesses returns the busiest processes by average CPU since start.
func topProcesses(fs procfs.FS, uptime uint64) ([]ProcessInfo, error) {
	all, err := fs.AllProcs()
	if err != nil {
		return nil, err
	}

	tck := clockTicks()
	pageSize := uint64(os.Getpagesize())

	var out []ProcessInfo
	for _, p := range all {
		stat, err := p.Stat()
		if err != nil {
			continue
		}

		var cpu float64
		started := float64(stat.Starttime) / tck
		if active := float64(uptime) - started; active > 0 {
			cpu = float64(stat.UTime+stat.STime) / tck / active * 100
		}

		cmd, err := p.CmdLine()
		if err != nil || len(cmd) == 0 {
			cmd = []string{stat.Comm}
		}

		out = append(out, ProcessInfo{
			Pid:     p.PID,
			CPU:     cpu,
			RSS:     uint64(stat.RSS) * pageSize,
			Command: RedactArgs(cmd),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CPU > out[j].CPU })
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}
