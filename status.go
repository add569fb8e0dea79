package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/angch/vastlogmon/ipc"
)

func printInstanceTable(w io.Writer, instances []ipc.StatusResponse) {
	if len(instances) == 0 {
		fmt.Fprintln(w, "No running instances found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tSTARTED\tMEM\tINSTANCE\tSOURCE\tSTATE\tLINES\tLAST SUCCESS")
	for _, inst := range instances {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			inst.PID,
			inst.StartTime.Format("2006-01-02 15:04"),
			formatBytes(inst.MemoryAlloc),
			orDash(inst.Stream.Instance),
			orDash(inst.Stream.Source),
			orDash(string(inst.Stream.State)),
			inst.Stream.LinesEmitted,
			formatLastSuccess(inst.Stream.LastSuccess, inst.Stream.ConsecutiveFailures),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTotal instances: %d\n", len(instances))
}

func formatLastSuccess(t time.Time, failures int) string {
	if t.IsZero() {
		return "-"
	}
	s := t.Format("15:04:05")
	if failures > 0 {
		s += fmt.Sprintf(" (%d failing)", failures)
	}
	return s
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
