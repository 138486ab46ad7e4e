package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/repository"
)

// Janitor evicts idle views and prunes old snapshots on an interval.
type Janitor struct {
	views       *ViewManager
	repo        repository.TopologyRepository
	idleTTL     time.Duration
	snapshotTTL time.Duration
	interval    time.Duration
	log         *zap.Logger
}

// NewJanitor creates a janitor. repo may be nil.
func NewJanitor(views *ViewManager, repo repository.TopologyRepository, idleTTL time.Duration, log *zap.Logger) *Janitor {
	interval := idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &Janitor{
		views:       views,
		repo:        repo,
		idleTTL:     idleTTL,
		snapshotTTL: 7 * 24 * time.Hour,
		interval:    interval,
		log:         log,
	}
}

// Run blocks until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	if j.idleTTL <= 0 {
		<-ctx.Done()
		return nil
	}
	j.log.Info("Starting view janitor", zap.Duration("interval", j.interval), zap.Duration("idle_ttl", j.idleTTL))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-ctx.Done():
			j.log.Info("View janitor stopped")
			return nil
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	if n := j.views.EvictIdle(j.idleTTL); n > 0 {
		j.log.Info("Evicted idle views", zap.Int("count", n))
	}
	if j.repo == nil {
		return
	}
	deleted, err := j.repo.DeleteOldSnapshots(ctx, time.Now().Add(-j.snapshotTTL))
	if err != nil {
		j.log.Error("Snapshot cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.log.Info("Pruned old snapshots", zap.Int64("count", deleted))
	}
}
