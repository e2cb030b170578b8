package services

import (
	"errors"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormsync_auth_attempts_total",
		Help: "Authentication attempts by method and outcome.",
	}, []string{"method", "outcome"})

	auditDeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dormsync_audit_dead_letters_total",
		Help: "Audit entries that could not be persisted.",
	})

	externalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormsync_external_failures_total",
		Help: "Failed calls to external collaborators.",
	}, []string{"service"})

	backupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormsync_backup_runs_total",
		Help: "Backup export runs by outcome.",
	}, []string{"outcome"})
)

func observeAuth(method string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		var svcErr ServiceError
		if errors.As(err, &svcErr) && svcErr.Code != "" {
			outcome = svcErr.Code
		}
	}
	authAttempts.WithLabelValues(method, outcome).Inc()
}

// HostSample is a point-in-time view of the host running the API.
type HostSample struct {
	CapturedAt        time.Time `json:"capturedAt"`
	ProcessRSSBytes   int64     `json:"processRssBytes"`
	SystemMemoryTotal int64     `json:"systemMemoryTotalBytes"`
	SystemMemoryUsed  int64     `json:"systemMemoryUsedBytes"`
	DiskTotalBytes    int64     `json:"diskTotalBytes"`
	DiskUsedBytes     int64     `json:"diskUsedBytes"`
	ProcessCpuLoad    float64   `json:"processCpuLoad"`
	SystemCpuLoad     float64   `json:"systemCpuLoad"`
}

// CaptureHostSample reads memory, disk and cpu figures. Missing figures are
// reported as zero.
func CaptureHostSample(diskPath string) HostSample {
	sample := HostSample{CapturedAt: time.Now().UTC()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfo(); err == nil && rss != nil {
			sample.ProcessRSSBytes = int64(rss.RSS)
		}
		if cpuPerc, err := proc.CPUPercent(); err == nil {
			sample.ProcessCpuLoad = cpuPerc / 100.0
		}
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		sample.SystemMemoryTotal = int64(memStat.Total)
		sample.SystemMemoryUsed = int64(memStat.Total - memStat.Available)
	}
	diskStat, err := disk.Usage(diskPath)
	if err != nil {
		diskStat, err = disk.Usage("/")
	}
	if err == nil && diskStat != nil {
		sample.DiskTotalBytes = int64(diskStat.Total)
		sample.DiskUsedBytes = int64(diskStat.Used)
	}
	if sysCPU, err := cpu.Percent(0, false); err == nil && len(sysCPU) > 0 {
		sample.SystemCpuLoad = sysCPU[0] / 100.0
	}
	return sample
}
