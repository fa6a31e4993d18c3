package kitchen

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"example.com/resto/services/kitchen/internal/metrics"
)

// SourcePort is the abstraction over one order backing store. The POS
// and online sources each implement it; the store never talks to
// persistence directly.
type SourcePort interface {
	// Kind identifies which source this port serves.
	Kind() OrderSource
	// FetchOrders returns the source's active orders already adapted to
	// the unified shape, without enrichment.
	FetchOrders(ctx context.Context) ([]UnifiedOrder, error)
	// UpdateStatus writes a status change through to the backing store,
	// translating to the source's native vocabulary.
	UpdateStatus(ctx context.Context, orderID string, status Status) error
}

// Subscriber delivers change notifications from the online order table.
// Subscribe returns a cancel function that releases the channel.
type Subscriber interface {
	Subscribe(ctx context.Context, onChange func()) (func(), error)
}

// Store owns the merged, enriched, FIFO-sorted order collection consumed
// by the kitchen display and mediates all status mutations. It is a
// constructed object: the composition root wires its sources and owns
// its subscription lifecycle.
type Store struct {
	pos        SourcePort
	online     SourcePort
	subscriber Subscriber
	thresholds Thresholds
	metrics    *metrics.Metrics
	now        func() time.Time

	// onCompleted, when set, is invoked after a successful write-through
	// that moved an order into a terminal status. Used for history
	// indexing; failures there never affect the board.
	onCompleted func(UnifiedOrder)

	mu          sync.RWMutex
	orders      []UnifiedOrder
	isLoading   bool
	errMsg      string
	lastSync    time.Time
	unsubscribe func()
}

// NewStore creates a kitchen store over the given source ports.
func NewStore(pos, online SourcePort, subscriber Subscriber, thresholds Thresholds, m *metrics.Metrics) *Store {
	if m == nil {
		m = metrics.New()
	}
	return &Store{
		pos:        pos,
		online:     online,
		subscriber: subscriber,
		thresholds: thresholds,
		metrics:    m,
		now:        time.Now,
	}
}

// SetCompletionHook registers a callback for orders reaching a terminal
// status. Must be called before the store is shared across goroutines.
func (s *Store) SetCompletionHook(hook func(UnifiedOrder)) {
	s.onCompleted = hook
}

// LoadOrders fetches both sources concurrently, adapts and enriches
// every order, sorts the merged list ascending by creation time and
// replaces the store state. If either source fails the whole load fails
// and the previous state is retained: stale-but-available beats empty.
func (s *Store) LoadOrders(ctx context.Context) error {
	s.mu.Lock()
	s.isLoading = true
	s.mu.Unlock()

	var posOrders, onlineOrders []UnifiedOrder

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posOrders, err = s.pos.FetchOrders(gctx)
		return errors.Wrap(err, "fetching POS orders")
	})
	g.Go(func() error {
		var err error
		onlineOrders, err = s.online.FetchOrders(gctx)
		return errors.Wrap(err, "fetching online orders")
	})

	if err := g.Wait(); err != nil {
		s.metrics.RecordError("kitchen_load")
		s.mu.Lock()
		s.isLoading = false
		s.errMsg = err.Error()
		s.mu.Unlock()
		log.Error().Err(err).Msg("Kitchen order load failed, keeping previous state")
		return err
	}

	now := s.now()
	merged := make([]UnifiedOrder, 0, len(posOrders)+len(onlineOrders))
	for _, o := range append(posOrders, onlineOrders...) {
		merged = append(merged, Enrich(o, now, s.thresholds))
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})

	s.metrics.RecordSuccess("kitchen_load")
	s.metrics.SetGauge("kitchen_active_orders", int64(len(merged)))

	s.mu.Lock()
	s.orders = merged
	s.isLoading = false
	s.errMsg = ""
	s.lastSync = now
	s.mu.Unlock()

	return nil
}

// RefreshOrders re-pulls both sources. Alias for LoadOrders, kept for
// call sites that express intent (manual refresh, change events, timer
// ticks).
func (s *Store) RefreshOrders(ctx context.Context) error {
	return s.LoadOrders(ctx)
}

// UpdateOrderStatus applies a status change. The in-memory order is
// mutated and re-enriched immediately so the display reflects the change
// with no latency; the write-through to the owning source runs in the
// background. On write failure the store self-heals with a full reload
// rather than attempting fine-grained rollback.
//
// An unknown id is a no-op. A transition outside the allowed table is
// rejected before anything is touched.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, newStatus Status) error {
	s.mu.Lock()
	idx := -1
	for i := range s.orders {
		if s.orders[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	order := s.orders[idx]
	if !CanTransition(order.Status, newStatus) {
		s.mu.Unlock()
		s.metrics.IncrementCounter("kitchen_rejected_transitions")
		return errors.Errorf("illegal status transition %s -> %s on order %s", order.Status, newStatus, orderID)
	}

	// Optimistic mutation first; the display must not wait on the write.
	order.Status = newStatus
	order = Enrich(order, s.now(), s.thresholds)
	s.orders[idx] = order
	source := sourceFor(order, s.pos, s.online)
	s.mu.Unlock()

	s.metrics.IncrementCounter("kitchen_status_updates")

	go func() {
		// Detached from the request context: the write-through should
		// survive the caller disconnecting.
		wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := source.UpdateStatus(wctx, orderID, newStatus); err != nil {
			log.Error().Err(err).
				Str("order_id", orderID).
				Str("status", string(newStatus)).
				Msg("Status write-through failed, reloading to reconcile")
			s.metrics.RecordError("kitchen_write_through")
			if lerr := s.LoadOrders(wctx); lerr != nil {
				log.Error().Err(lerr).Msg("Reconciliation reload failed")
			}
			return
		}

		s.metrics.RecordSuccess("kitchen_write_through")
		if newStatus.Terminal() && s.onCompleted != nil {
			s.onCompleted(order)
		}
	}()

	return nil
}

// StartRealtime opens the change subscription that keeps the merged view
// current. Idempotent: a second call while a subscription is active is a
// no-op. Change events trigger a full refresh.
func (s *Store) StartRealtime(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if s.subscriber == nil {
		log.Warn().Msg("No subscriber configured, kitchen board will rely on polling")
		return nil
	}

	cancel, err := s.subscriber.Subscribe(ctx, func() {
		s.metrics.IncrementCounter("kitchen_realtime_events")
		if err := s.RefreshOrders(ctx); err != nil {
			log.Error().Err(err).Msg("Refresh after change event failed")
		}
	})
	if err != nil {
		return errors.Wrap(err, "opening order change subscription")
	}

	s.mu.Lock()
	if s.unsubscribe != nil {
		// Lost the race against a concurrent StartRealtime.
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.unsubscribe = cancel
	s.mu.Unlock()

	log.Info().Msg("Kitchen realtime subscription active")
	return nil
}

// StopRealtime tears down the subscription. Safe to call when none is
// active.
func (s *Store) StopRealtime() {
	s.mu.Lock()
	cancel := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		log.Info().Msg("Kitchen realtime subscription closed")
	}
}

// Orders returns a copy of the current merged order list.
func (s *Store) Orders() []UnifiedOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UnifiedOrder, len(s.orders))
	copy(out, s.orders)
	return out
}

// IsLoading reports whether a load is in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Err returns the message of the last failed load, empty after a
// successful one.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// LastSync returns the time of the last successful load.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

func sourceFor(o UnifiedOrder, pos, online SourcePort) SourcePort {
	if o.Source == SourceOnline {
		return online
	}
	return pos
}
