package repository

import (
	"context"
	"time"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// TopologyRepository defines topology snapshot data access methods
type TopologyRepository interface {
	SaveSnapshot(ctx context.Context, snapshot *models.TopologySnapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.TopologySnapshot, error)
	ListSnapshots(ctx context.Context, layout string, scope models.Scope, limit int) ([]*models.TopologySnapshot, error)
	GetLatestSnapshot(ctx context.Context, layout string, scope models.Scope) (*models.TopologySnapshot, error)
	DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
