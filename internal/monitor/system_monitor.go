// Package monitor samples system resources and battery state and drives the
// low power signal the capture loop reacts to.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pirdfy/pirdfy-go/internal/conf"
	"github.com/pirdfy/pirdfy-go/internal/datastore"
	"github.com/pirdfy/pirdfy-go/internal/telemetry"
)

// Sample is one reading of the monitored resources.
type Sample struct {
	SampledAt      time.Time
	CPUPercent     float64
	MemoryPercent  float64
	DiskPercent    float64
	BatteryPercent float64 // -1 when no battery is present
	LowPower       bool
}

// SystemMonitor periodically samples CPU, memory, disk and battery, persists
// the readings and exposes a low power flag. Camera orchestrators read the
// flag on every tick to stretch their capture interval and suppress video.
type SystemMonitor struct {
	settings    *conf.Settings
	store       datastore.Interface
	metrics     *telemetry.Metrics
	interval    time.Duration
	batteryPath string
	log         *slog.Logger

	lowPower atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSystemMonitor creates a new system monitor instance. The store and
// metrics are optional, nil disables persistence and gauge updates.
func NewSystemMonitor(settings *conf.Settings, store datastore.Interface,
	metrics *telemetry.Metrics, log *slog.Logger) *SystemMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	interval := 30 * time.Second
	if settings.Monitoring.IntervalSeconds > 0 {
		interval = time.Duration(settings.Monitoring.IntervalSeconds) * time.Second
	}

	return &SystemMonitor{
		settings:    settings,
		store:       store,
		metrics:     metrics,
		interval:    interval,
		batteryPath: findBatteryPath(defaultPowerSupplyRoot),
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// LowPower reports whether the battery is below the configured threshold.
// Always false when monitoring is disabled or no battery is present.
func (m *SystemMonitor) LowPower() bool {
	return m.lowPower.Load()
}

// Start launches the sampling loop. No-op when monitoring is disabled.
func (m *SystemMonitor) Start() {
	if !m.settings.Monitoring.Enabled {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.sampleOnce()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.sampleOnce()
			}
		}
	}()

	m.log.Info("system monitor started",
		"interval", m.interval, "battery", m.batteryPath != "")
}

// Stop terminates the sampling loop and waits for it to exit.
func (m *SystemMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *SystemMonitor) sampleOnce() {
	sample := m.collect()
	m.apply(sample)
}

// collect gathers one resource sample. Individual probe failures leave the
// corresponding field at zero rather than failing the whole sample.
func (m *SystemMonitor) collect() Sample {
	sample := Sample{SampledAt: time.Now()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		sample.CPUPercent = percents[0]
	} else if err != nil {
		m.log.Debug("cpu sample failed", "error", err)
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		sample.MemoryPercent = memInfo.UsedPercent
	} else {
		m.log.Debug("memory sample failed", "error", err)
	}

	diskPath := m.settings.Storage.DataPath
	if diskPath == "" {
		diskPath = "/"
	}
	if usage, err := disk.Usage(diskPath); err == nil {
		sample.DiskPercent = usage.UsedPercent
	} else {
		m.log.Debug("disk sample failed", "path", diskPath, "error", err)
	}

	sample.BatteryPercent = readBatteryPercent(m.batteryPath)
	sample.LowPower = evaluateLowPower(sample.BatteryPercent, m.settings.Monitoring.LowPowerThreshold)

	return sample
}

func (m *SystemMonitor) apply(sample Sample) {
	was := m.lowPower.Swap(sample.LowPower)
	if sample.LowPower != was {
		if sample.LowPower {
			m.log.Warn("entering low power mode",
				"battery_percent", sample.BatteryPercent,
				"threshold", m.settings.Monitoring.LowPowerThreshold)
		} else {
			m.log.Info("leaving low power mode", "battery_percent", sample.BatteryPercent)
		}
	}

	if m.metrics != nil {
		m.metrics.SetBatteryPercent(sample.BatteryPercent)
	}

	if m.store != nil {
		stat := &datastore.SystemStat{
			SampledAt:      sample.SampledAt,
			CPUPercent:     sample.CPUPercent,
			MemoryPercent:  sample.MemoryPercent,
			DiskPercent:    sample.DiskPercent,
			BatteryPercent: sample.BatteryPercent,
			LowPower:       sample.LowPower,
		}
		if err := m.store.InsertSystemStat(stat); err != nil {
			m.log.Warn("system stat not persisted", "error", err)
		}
	}
}

// evaluateLowPower decides the low power state from a battery reading.
// A missing battery (-1) never triggers low power.
func evaluateLowPower(batteryPercent, threshold float64) bool {
	if batteryPercent < 0 || threshold <= 0 {
		return false
	}
	return batteryPercent < threshold
}
