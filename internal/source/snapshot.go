package source

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// SnapshotStore is the read side of the snapshot repository.
type SnapshotStore interface {
	GetLatestSnapshot(ctx context.Context, layout string, scope models.Scope) (*models.TopologySnapshot, error)
}

// FallbackProvider serves the latest stored snapshot when the wrapped
// provider fails, so a view can still mount while a cluster is unreachable.
type FallbackProvider struct {
	Provider
	store  SnapshotStore
	logger *zap.Logger
}

// WithSnapshotFallback wraps p.
func WithSnapshotFallback(p Provider, store SnapshotStore, logger *zap.Logger) *FallbackProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackProvider{Provider: p, store: store, logger: logger}
}

func (p *FallbackProvider) GenerateLayout(ctx context.Context, scope models.Scope) (models.Graph, error) {
	g, err := p.Provider.GenerateLayout(ctx, scope)
	if err == nil {
		return g, nil
	}

	snap, serr := p.store.GetLatestSnapshot(ctx, p.Name(), scope)
	if serr != nil || snap == nil {
		return models.Graph{}, err
	}
	var replay models.Graph
	if jerr := json.Unmarshal([]byte(snap.Data), &replay); jerr != nil {
		return models.Graph{}, fmt.Errorf("%w (snapshot %s unreadable: %v)", err, snap.ID, jerr)
	}
	p.logger.Warn("layout provider failed, serving stored snapshot",
		zap.String("layout", p.Name()),
		zap.String("snapshot_id", snap.ID),
		zap.Time("snapshot_at", snap.CreatedAt),
		zap.Error(err),
	)
	return replay, nil
}
