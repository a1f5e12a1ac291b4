package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/sisbarc/camshell/internal/storage"
)

// EventDeviceDiscovered is published the first time a device is stored.
const EventDeviceDiscovered = "device.discovered"

// DefaultInterval is how often the firmware re-queries for peers.
const DefaultInterval = 55 * time.Second

// EventPublisher allows the watcher to emit events without depending on a
// concrete event bus implementation.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// Gauge receives the number of devices seen by the last browse.
type Gauge interface {
	DevicesDiscovered(n int)
}

// Config holds the watcher's collaborators.
type Config struct {
	Browser  Browser
	Store    storage.DeviceStore
	Interval time.Duration
	Logger   *slog.Logger
	// Gauge and EventPublisher are optional.
	Gauge          Gauge
	EventPublisher EventPublisher
}

// Watcher browses on a fixed interval and records what it finds.
type Watcher struct {
	cron   gocron.Scheduler
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWatcher creates a stopped watcher.
func NewWatcher(cfg Config) (*Watcher, error) {
	if cfg.Browser == nil || cfg.Store == nil {
		return nil, fmt.Errorf("discovery watcher needs a browser and a store")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	return &Watcher{cron: cron, cfg: cfg, logger: cfg.Logger}, nil
}

// Start schedules the browse job, running it once immediately. Runs never
// overlap; a run still going when the next is due is skipped.
func (w *Watcher) Start(ctx context.Context) error {
	jobCtx, cancel := context.WithCancel(ctx)

	_, err := w.cron.NewJob(
		gocron.DurationJob(w.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := w.RunOnce(jobCtx); err != nil {
				w.logger.Warn("device discovery failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithName("device-discovery"),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("scheduling discovery: %w", err)
	}

	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.cron.Start()
	w.logger.Info("device discovery started", "interval", w.cfg.Interval.String())
	return nil
}

// Stop cancels any browse in flight and shuts the scheduler down.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()
	return w.cron.Shutdown()
}

// RunOnce browses, stores every device found, and returns how many there
// were. New devices are published as EventDeviceDiscovered.
func (w *Watcher) RunOnce(ctx context.Context) (int, error) {
	devices, err := w.cfg.Browser.Browse(ctx)
	if err != nil {
		return 0, err
	}

	for _, d := range devices {
		created, err := w.cfg.Store.Upsert(ctx, d)
		if err != nil {
			return 0, fmt.Errorf("storing device %q: %w", d.Instance, err)
		}
		if !created {
			continue
		}
		w.logger.Info("camera discovered",
			slog.String("instance", d.Instance),
			slog.String("host", d.Host),
			slog.String("addr", d.Addr),
			slog.Int("port", d.Port),
		)
		if w.cfg.EventPublisher != nil {
			w.cfg.EventPublisher.Publish(EventDeviceDiscovered, map[string]string{
				"instance": d.Instance,
				"host":     d.Host,
				"addr":     d.Addr,
				"board":    d.Board,
				"model":    d.Model,
			})
		}
	}

	if w.cfg.Gauge != nil {
		w.cfg.Gauge.DevicesDiscovered(len(devices))
	}
	return len(devices), nil
}
