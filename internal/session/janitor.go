package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Janitor prunes idle sessions on a cron schedule.
type Janitor struct {
	mgr    *Manager
	cron   *cron.Cron
	lock   sync.Mutex
	logger *slog.Logger
}

// NewJanitor validates spec and prepares a janitor for mgr. spec accepts
// five-field cron expressions and descriptors such as "@every 5m".
func NewJanitor(mgr *Manager, spec string, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{mgr: mgr, logger: logger}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	j.cron = cron.New(cron.WithParser(parser))
	if _, err := j.cron.AddFunc(spec, j.run); err != nil {
		return nil, fmt.Errorf("session janitor: invalid schedule %q: %w", spec, err)
	}
	return j, nil
}

func (j *Janitor) run() {
	// Skip the tick if the previous one is still running.
	if !j.lock.TryLock() {
		j.logger.Warn("session janitor still running, skipping tick")
		return
	}
	defer j.lock.Unlock()

	if n := j.mgr.Prune(); n > 0 {
		j.logger.Info("pruned idle sessions", "count", n, "remaining", j.mgr.Len())
	}
}

// Start begins running the schedule in the background.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("session janitor started")
}

// Stop halts the schedule and waits for an in-flight prune, or for ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	select {
	case <-j.cron.Stop().Done():
		j.logger.Info("session janitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
