package kitchen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
	kind OrderSource
}

func (m *mockSource) Kind() OrderSource {
	return m.kind
}

func (m *mockSource) FetchOrders(ctx context.Context) ([]UnifiedOrder, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]UnifiedOrder)
	return orders, args.Error(1)
}

func (m *mockSource) UpdateStatus(ctx context.Context, orderID string, status Status) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

type mockSubscriber struct {
	mu        sync.Mutex
	calls     int
	cancels   int
	onChange  func()
	subscribe error
}

func (m *mockSubscriber) Subscribe(ctx context.Context, onChange func()) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribe != nil {
		return nil, m.subscribe
	}
	m.calls++
	m.onChange = onChange
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cancels++
	}, nil
}

func (m *mockSubscriber) subscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockSubscriber) fireChange() {
	m.mu.Lock()
	onChange := m.onChange
	m.mu.Unlock()
	if onChange != nil {
		onChange()
	}
}

func posOrder(id string, status Status, createdAt time.Time) UnifiedOrder {
	return UnifiedOrder{
		ID:          id,
		Source:      SourcePOS,
		Type:        TypeDineIn,
		Status:      status,
		TableNumber: 3,
		Items:       []ItemLine{{Name: "Haddock", Quantity: 1}},
		CreatedAt:   createdAt,
	}
}

func onlineOrder(id string, status Status, createdAt time.Time) UnifiedOrder {
	return UnifiedOrder{
		ID:           id,
		Source:       SourceOnline,
		Type:         TypeCollection,
		Status:       status,
		CustomerName: "B. Kaur",
		Items:        []ItemLine{{Name: "Cod", Quantity: 2}},
		CreatedAt:    createdAt,
	}
}

func newTestStore(pos, online *mockSource, sub Subscriber) *Store {
	return NewStore(pos, online, sub, DefaultThresholds(), nil)
}

func TestLoadOrdersMergesAndSorts(t *testing.T) {
	base := time.Now().Add(-30 * time.Minute)

	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}

	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		posOrder("pos-2", StatusPreparing, base.Add(10*time.Minute)),
		posOrder("pos-1", StatusPending, base.Add(2*time.Minute)),
	}, nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		onlineOrder("online-1", StatusPending, base.Add(1*time.Minute)),
		onlineOrder("online-3", StatusReady, base.Add(20*time.Minute)),
		onlineOrder("online-2", StatusPreparing, base.Add(5*time.Minute)),
	}, nil)

	store := newTestStore(pos, online, nil)
	require.NoError(t, store.LoadOrders(context.Background()))

	orders := store.Orders()
	require.Len(t, orders, 5)

	// Strict FIFO by creation time, regardless of source.
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	require.Equal(t, []string{"online-1", "pos-1", "online-2", "pos-2", "online-3"}, ids)

	// Every order carries derived fields after a load.
	for _, o := range orders {
		require.NotEmpty(t, o.StatusColor)
		require.NotEmpty(t, o.TimeDisplay)
	}

	require.Empty(t, store.Err())
	require.False(t, store.IsLoading())
	require.False(t, store.LastSync().IsZero())
}

func TestLoadOrdersFailureRetainsPreviousState(t *testing.T) {
	base := time.Now().Add(-10 * time.Minute)

	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}

	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		posOrder("pos-1", StatusPending, base),
	}, nil).Once()
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		onlineOrder("online-1", StatusPreparing, base.Add(time.Minute)),
	}, nil)

	store := newTestStore(pos, online, nil)
	require.NoError(t, store.LoadOrders(context.Background()))
	firstSync := store.LastSync()

	// Second load fails on the POS side; the merged view must survive.
	pos.On("FetchOrders", mock.Anything).Return(nil, errors.New("pos database down"))

	err := store.LoadOrders(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetching POS orders")

	orders := store.Orders()
	require.Len(t, orders, 2)
	require.Contains(t, store.Err(), "pos database down")
	require.Equal(t, firstSync, store.LastSync())
	require.False(t, store.IsLoading())
}

func TestUpdateOrderStatusIsOptimistic(t *testing.T) {
	base := time.Now().Add(-5 * time.Minute)

	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}
	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		posOrder("pos-1", StatusPending, base),
	}, nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)

	// Hold the write-through open so the test can observe the board
	// state before the write resolves.
	release := make(chan struct{})
	done := make(chan struct{})
	pos.On("UpdateStatus", mock.Anything, "pos-1", StatusPreparing).
		Run(func(args mock.Arguments) {
			<-release
			close(done)
		}).
		Return(nil)

	store := newTestStore(pos, online, nil)
	require.NoError(t, store.LoadOrders(context.Background()))

	require.NoError(t, store.UpdateOrderStatus(context.Background(), "pos-1", StatusPreparing))

	// Visible immediately, before the backing write finishes.
	orders := store.Orders()
	require.Equal(t, StatusPreparing, orders[0].Status)

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write-through never reached the source")
	}
}

func TestUpdateOrderStatusRoutesToOwningSource(t *testing.T) {
	base := time.Now().Add(-5 * time.Minute)

	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}
	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		onlineOrder("online-1", StatusPending, base),
	}, nil)
	written := make(chan struct{})
	online.On("UpdateStatus", mock.Anything, "online-1", StatusPreparing).
		Run(func(args mock.Arguments) { close(written) }).
		Return(nil)

	store := newTestStore(pos, online, nil)
	require.NoError(t, store.LoadOrders(context.Background()))

	require.NoError(t, store.UpdateOrderStatus(context.Background(), "online-1", StatusPreparing))

	select {
	case <-written:
	case <-time.After(2 * time.Second):
		t.Fatal("write never routed to the online source")
	}
	pos.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatusUnknownIDIsNoOp(t *testing.T) {
	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}
	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)

	store := newTestStore(pos, online, nil)
	require.NoError(t, store.LoadOrders(context.Background()))

	require.NoError(t, store.UpdateOrderStatus(context.Background(), "ghost", StatusPreparing))

	pos.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	online.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatusRejectsIllegalTransition(t *testing.T) {
	base := time.Now().Add(-5 * time.Minute)

	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}
	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		posOrder("pos-1", StatusPending, base),
	}, nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)

	store := newTestStore(pos, online, nil)
	require.NoError(t, store.LoadOrders(context.Background()))

	// PENDING cannot jump straight to READY.
	err := store.UpdateOrderStatus(context.Background(), "pos-1", StatusReady)
	require.Error(t, err)
	require.Contains(t, err.Error(), "illegal status transition")

	require.Equal(t, StatusPending, store.Orders()[0].Status)
	pos.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatusWriteFailureReloads(t *testing.T) {
	base := time.Now().Add(-5 * time.Minute)

	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}

	// Every fetch reports the order still PENDING, so a reconciliation
	// reload rolls the optimistic change back.
	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		posOrder("pos-1", StatusPending, base),
	}, nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)
	pos.On("UpdateStatus", mock.Anything, "pos-1", StatusPreparing).
		Return(errors.New("pos write rejected"))

	store := newTestStore(pos, online, nil)
	require.NoError(t, store.LoadOrders(context.Background()))

	require.NoError(t, store.UpdateOrderStatus(context.Background(), "pos-1", StatusPreparing))
	require.Equal(t, StatusPreparing, store.Orders()[0].Status)

	require.Eventually(t, func() bool {
		return store.Orders()[0].Status == StatusPending
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUpdateOrderStatusCompletionHook(t *testing.T) {
	base := time.Now().Add(-5 * time.Minute)

	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}
	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		posOrder("pos-1", StatusReady, base),
	}, nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)
	pos.On("UpdateStatus", mock.Anything, "pos-1", StatusCompleted).Return(nil)

	store := newTestStore(pos, online, nil)

	var hookMu sync.Mutex
	var completed []string
	store.SetCompletionHook(func(o UnifiedOrder) {
		hookMu.Lock()
		defer hookMu.Unlock()
		completed = append(completed, o.ID)
	})

	require.NoError(t, store.LoadOrders(context.Background()))
	require.NoError(t, store.UpdateOrderStatus(context.Background(), "pos-1", StatusCompleted))

	require.Eventually(t, func() bool {
		hookMu.Lock()
		defer hookMu.Unlock()
		return len(completed) == 1 && completed[0] == "pos-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartRealtimeIsIdempotent(t *testing.T) {
	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}
	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)

	sub := &mockSubscriber{}
	store := newTestStore(pos, online, sub)

	require.NoError(t, store.StartRealtime(context.Background()))
	require.NoError(t, store.StartRealtime(context.Background()))
	require.Equal(t, 1, sub.subscribeCalls())

	store.StopRealtime()

	// A fresh subscription after a stop is allowed.
	require.NoError(t, store.StartRealtime(context.Background()))
	require.Equal(t, 2, sub.subscribeCalls())
}

func TestRealtimeChangeTriggersRefresh(t *testing.T) {
	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}
	pos.On("FetchOrders", mock.Anything).Return([]UnifiedOrder{
		posOrder("pos-1", StatusPending, time.Now()),
	}, nil)
	online.On("FetchOrders", mock.Anything).Return([]UnifiedOrder(nil), nil)

	sub := &mockSubscriber{}
	store := newTestStore(pos, online, sub)

	require.NoError(t, store.StartRealtime(context.Background()))
	require.Empty(t, store.Orders())

	sub.fireChange()

	require.Len(t, store.Orders(), 1)
}

func TestStopRealtimeWithoutSubscription(t *testing.T) {
	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}

	store := newTestStore(pos, online, &mockSubscriber{})
	store.StopRealtime()
}

func TestStartRealtimeSubscribeError(t *testing.T) {
	pos := &mockSource{kind: SourcePOS}
	online := &mockSource{kind: SourceOnline}

	sub := &mockSubscriber{subscribe: errors.New("redis unavailable")}
	store := newTestStore(pos, online, sub)

	err := store.StartRealtime(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "opening order change subscription")
}
