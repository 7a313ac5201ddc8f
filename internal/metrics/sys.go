package metrics

import (
	"fmt"
	"os"
	"runtime"
	"time"
)

var startedAt = time.Now()

// SysHealth represents a point-in-time snapshot of process health.
type SysHealth struct {
	AllocMB    uint64
	SysMB      uint64
	NumGC      uint32
	Goroutines int
	DBSize     string
	Uptime     time.Duration
}

// GetSysHealth collects real-time process health data.
func GetSysHealth(dbPath string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		AllocMB:    m.Alloc / 1024 / 1024,
		SysMB:      m.Sys / 1024 / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
		DBSize:     fileSize(dbPath),
		Uptime:     time.Since(startedAt).Truncate(time.Second),
	}
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown"
	}

	size := info.Size()
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
