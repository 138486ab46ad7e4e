package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/models"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/logger"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/metrics"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/topologycache"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/tracing"
	"github.com/kubilitics/kubilitics-topology/internal/repository"
	"github.com/kubilitics/kubilitics-topology/internal/source"
	"github.com/kubilitics/kubilitics-topology/internal/topology"
)

var (
	ErrViewNotFound  = errors.New("view not found")
	ErrTooManyViews  = errors.New("too many views")
	ErrInvalidScope  = errors.New("invalid scope")
	ErrLayoutFailure = errors.New("layout provider failed")
)

// Publisher receives every view model produced by an event, and a notice
// when a view goes away.
type Publisher interface {
	PublishView(viewID string, vm models.ViewModel)
	PublishDeleted(viewID string)
}

// Watchers reports whether a view has live subscribers. Watched views are
// never evicted as idle.
type Watchers interface {
	HasSubscribers(viewID string) bool
}

// ViewService manages mounted topology views
type ViewService interface {
	Layouts() []string
	CreateView(ctx context.Context, layout string, scope models.Scope) (models.ViewModel, error)
	GetView(ctx context.Context, id string) (models.ViewModel, error)
	DeleteView(ctx context.Context, id string) error
	Remount(ctx context.Context, id string, scope models.Scope, refresh bool) (models.ViewModel, error)
	ToggleFilter(ctx context.Context, id, key string) (models.ViewModel, error)
	SelectNode(ctx context.Context, id, nodeID string) (models.ViewModel, error)
	ClearSelection(ctx context.Context, id string) (models.ViewModel, error)
	Detail(ctx context.Context, id string) (*models.TopologyNode, error)
	Snapshots(ctx context.Context, id string, limit int) ([]*models.TopologySnapshot, error)
	ViewCount() int
}

// Options configures NewViewService.
type Options struct {
	DefaultLayout string
	MaxViews      int
}

type viewEntry struct {
	view     *topology.View
	lastUsed time.Time
}

// ViewManager is the in-memory ViewService.
type ViewManager struct {
	registry  *source.Registry
	cache     *topologycache.Cache
	repo      repository.TopologyRepository // nil disables snapshot history
	publisher Publisher
	watchers  Watchers
	log       *zap.Logger
	opts      Options

	mu    sync.RWMutex
	views map[string]*viewEntry
}

var _ ViewService = (*ViewManager)(nil)

// NewViewService creates a view service. repo and publisher may be nil.
func NewViewService(registry *source.Registry, cache *topologycache.Cache, repo repository.TopologyRepository, log *zap.Logger, opts Options) *ViewManager {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxViews <= 0 {
		opts.MaxViews = 1000
	}
	return &ViewManager{
		registry: registry,
		cache:    cache,
		repo:     repo,
		log:      log,
		opts:     opts,
		views:    map[string]*viewEntry{},
	}
}

// SetPublisher wires the broadcast target. Call before serving traffic.
func (s *ViewManager) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetWatchers wires the subscriber check used by EvictIdle.
func (s *ViewManager) SetWatchers(w Watchers) {
	s.watchers = w
}

func (s *ViewManager) Layouts() []string {
	return s.registry.Names()
}

func (s *ViewManager) ViewCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}

func (s *ViewManager) CreateView(ctx context.Context, layout string, scope models.Scope) (models.ViewModel, error) {
	if layout == "" {
		layout = s.opts.DefaultLayout
	}
	scope, err := normalizeScope(scope)
	if err != nil {
		return models.ViewModel{}, err
	}
	if _, err := s.registry.Get(layout); err != nil {
		return models.ViewModel{}, err
	}

	s.mu.Lock()
	if len(s.views) >= s.opts.MaxViews {
		s.mu.Unlock()
		return models.ViewModel{}, fmt.Errorf("%w: limit is %d", ErrTooManyViews, s.opts.MaxViews)
	}
	view := topology.NewView(uuid.New().String(), layout)
	s.views[view.ID] = &viewEntry{view: view, lastUsed: time.Now()}
	metrics.ViewsActive.Set(float64(len(s.views)))
	s.mu.Unlock()

	vm, err := s.mount(ctx, view, scope, false)
	if err != nil {
		s.remove(view.ID)
		return models.ViewModel{}, err
	}
	logger.For(ctx, s.log).Info("view created",
		zap.String("view_id", view.ID),
		zap.String("layout", layout),
		zap.String("scope", string(scope.Kind)),
	)
	return vm, nil
}

func (s *ViewManager) GetView(ctx context.Context, id string) (models.ViewModel, error) {
	view, err := s.lookup(id)
	if err != nil {
		return models.ViewModel{}, err
	}
	s.touch(id)
	return view.Current(), nil
}

func (s *ViewManager) DeleteView(ctx context.Context, id string) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	s.remove(id)
	if s.publisher != nil {
		s.publisher.PublishDeleted(id)
	}
	logger.For(ctx, s.log).Info("view deleted", zap.String("view_id", id))
	return nil
}

func (s *ViewManager) Remount(ctx context.Context, id string, scope models.Scope, refresh bool) (models.ViewModel, error) {
	view, err := s.lookup(id)
	if err != nil {
		return models.ViewModel{}, err
	}
	scope, err = normalizeScope(scope)
	if err != nil {
		return models.ViewModel{}, err
	}
	return s.mount(ctx, view, scope, refresh)
}

func (s *ViewManager) ToggleFilter(ctx context.Context, id, key string) (models.ViewModel, error) {
	return s.event(ctx, id, "filter", func(v *topology.View) models.ViewModel {
		return v.ToggleFilter(key)
	}, attribute.String("filter", key))
}

func (s *ViewManager) SelectNode(ctx context.Context, id, nodeID string) (models.ViewModel, error) {
	return s.event(ctx, id, "select", func(v *topology.View) models.ViewModel {
		return v.NodeClick(nodeID)
	}, attribute.String("node_id", nodeID))
}

func (s *ViewManager) ClearSelection(ctx context.Context, id string) (models.ViewModel, error) {
	return s.event(ctx, id, "deselect", func(v *topology.View) models.ViewModel {
		return v.PaneClick()
	})
}

// Detail returns the focused node, or nil when the view is idle.
func (s *ViewManager) Detail(ctx context.Context, id string) (*models.TopologyNode, error) {
	view, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	s.touch(id)
	return view.Current().Detail, nil
}

func (s *ViewManager) Snapshots(ctx context.Context, id string, limit int) ([]*models.TopologySnapshot, error) {
	view, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	s.touch(id)
	if s.repo == nil {
		return []*models.TopologySnapshot{}, nil
	}
	return s.repo.ListSnapshots(ctx, view.Layout, view.State().Scope, limit)
}

// EvictIdle removes views not touched for longer than ttl and returns how
// many were removed. Views with live subscribers are kept.
func (s *ViewManager) EvictIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	var evicted []string
	s.mu.Lock()
	for id, e := range s.views {
		if !e.lastUsed.Before(cutoff) {
			continue
		}
		if s.watchers != nil && s.watchers.HasSubscribers(id) {
			e.lastUsed = time.Now()
			continue
		}
		delete(s.views, id)
		evicted = append(evicted, id)
	}
	metrics.ViewsActive.Set(float64(len(s.views)))
	s.mu.Unlock()

	if s.publisher != nil {
		for _, id := range evicted {
			s.publisher.PublishDeleted(id)
		}
	}
	return len(evicted)
}

func (s *ViewManager) mount(ctx context.Context, view *topology.View, scope models.Scope, refresh bool) (models.ViewModel, error) {
	ctx, span := tracing.StartSpan(ctx, "view.mount",
		attribute.String("view_id", view.ID),
		attribute.String("layout", view.Layout),
		attribute.String("scope", string(scope.Kind)),
	)
	defer span.End()
	start := time.Now()

	graph, err := s.canonical(ctx, view.Layout, scope, refresh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.ViewModel{}, err
	}

	vm, err := view.Mount(scope, graph)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.ViewModel{}, fmt.Errorf("failed to mount %s layout: %w", view.Layout, err)
	}
	if vm.DroppedEdges > 0 {
		metrics.DanglingEdgesTotal.Add(float64(vm.DroppedEdges))
		logger.For(ctx, s.log).Debug("dropped dangling edges",
			zap.String("view_id", view.ID),
			zap.Int("count", vm.DroppedEdges),
		)
	}

	s.saveSnapshot(ctx, view.Layout, scope, graph, vm.Fingerprint)
	s.touch(view.ID)
	s.observe("mount", start, vm)
	s.publish(vm)
	return vm, nil
}

// canonical returns the graph for layout and scope, from cache when possible.
func (s *ViewManager) canonical(ctx context.Context, layout string, scope models.Scope, refresh bool) (models.Graph, error) {
	if refresh {
		s.cache.InvalidateLayout(layout)
	} else if g, ok := s.cache.Get(layout, scope); ok {
		return g, nil
	}

	provider, err := s.registry.Get(layout)
	if err != nil {
		return models.Graph{}, err
	}
	start := time.Now()
	g, err := provider.GenerateLayout(ctx, scope)
	metrics.LayoutBuildDurationSeconds.WithLabelValues(layout).Observe(time.Since(start).Seconds())
	if err != nil {
		return models.Graph{}, fmt.Errorf("%w: %s: %v", ErrLayoutFailure, layout, err)
	}
	s.cache.Set(layout, scope, g)
	return g, nil
}

func (s *ViewManager) saveSnapshot(ctx context.Context, layout string, scope models.Scope, g models.Graph, fingerprint string) {
	if s.repo == nil {
		return
	}
	data, err := json.Marshal(g)
	if err != nil {
		logger.For(ctx, s.log).Warn("failed to encode snapshot", zap.Error(err))
		return
	}
	snap := &models.TopologySnapshot{
		Layout:      layout,
		ScopeKind:   string(scope.Kind),
		ScopeID:     scope.ID,
		ScopeLabel:  scope.Label,
		Fingerprint: fingerprint,
		NodeCount:   len(g.Nodes),
		EdgeCount:   len(g.Edges),
		Data:        string(data),
	}
	if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
		logger.For(ctx, s.log).Warn("failed to save snapshot",
			zap.String("layout", layout),
			zap.Error(err),
		)
	}
}

func (s *ViewManager) event(ctx context.Context, id, name string, apply func(*topology.View) models.ViewModel, attrs ...attribute.KeyValue) (models.ViewModel, error) {
	view, err := s.lookup(id)
	if err != nil {
		return models.ViewModel{}, err
	}
	_, span := tracing.StartSpan(ctx, "view."+name, append(attrs, attribute.String("view_id", id))...)
	defer span.End()

	start := time.Now()
	vm := apply(view)
	s.touch(id)
	s.observe(name, start, vm)
	s.publish(vm)

	if vm.Selection != nil {
		span.SetAttributes(attribute.String("selection", *vm.Selection))
	}
	logger.For(ctx, s.log).Debug("view event",
		zap.String("view_id", id),
		zap.String("event", name),
		zap.Int("visible_nodes", len(vm.Nodes)),
		zap.Uint64("revision", vm.Revision),
	)
	return vm, nil
}

func (s *ViewManager) observe(event string, start time.Time, vm models.ViewModel) {
	metrics.ViewEventsTotal.WithLabelValues(event).Inc()
	metrics.ViewEventDurationSeconds.WithLabelValues(event).Observe(time.Since(start).Seconds())
	metrics.VisibleNodes.Observe(float64(len(vm.Nodes)))
	if vm.Selection != nil {
		related := 0
		for _, n := range vm.RelatedCounts {
			related += n
		}
		metrics.RelatedNodes.Observe(float64(related))
	}
}

func (s *ViewManager) publish(vm models.ViewModel) {
	if s.publisher != nil {
		s.publisher.PublishView(vm.ViewID, vm)
	}
}

func (s *ViewManager) lookup(id string) (*topology.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	return e.view, nil
}

func (s *ViewManager) touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.views[id]; ok {
		e.lastUsed = time.Now()
	}
}

func (s *ViewManager) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, id)
	metrics.ViewsActive.Set(float64(len(s.views)))
}

func normalizeScope(scope models.Scope) (models.Scope, error) {
	if scope.Kind == "" {
		scope.Kind = models.ScopeGlobal
	}
	if !scope.Kind.Valid() {
		return scope, fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, scope.Kind)
	}
	return scope, nil
}
