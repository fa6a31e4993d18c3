package kitchen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseOrder(orderType OrderType, status Status, createdAt time.Time) UnifiedOrder {
	return UnifiedOrder{
		ID:        "order-1",
		Source:    SourcePOS,
		Type:      orderType,
		Status:    status,
		CreatedAt: createdAt,
	}
}

func TestEnrichIsPure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	order := baseOrder(TypeDineIn, StatusPreparing, now.Add(-7*time.Minute))

	first := Enrich(order, now, DefaultThresholds())
	second := Enrich(order, now, DefaultThresholds())

	require.Equal(t, first.WaitingTime, second.WaitingTime)
	require.Equal(t, first.IsPriority, second.IsPriority)
	require.Equal(t, first.StatusColor, second.StatusColor)
	require.Equal(t, first.TimeDisplay, second.TimeDisplay)
}

func TestEnrichWaitingTypeAlwaysPriority(t *testing.T) {
	now := time.Now()
	// One minute old, far below the urgent threshold: the order type
	// rule alone must flag it.
	order := baseOrder(TypeWaiting, StatusPending, now.Add(-1*time.Minute))

	enriched := Enrich(order, now, DefaultThresholds())

	require.Equal(t, 1, enriched.WaitingTime)
	require.True(t, enriched.IsPriority)
}

func TestEnrichUrgentThresholdIsStrict(t *testing.T) {
	now := time.Now()
	thresholds := DefaultThresholds()

	tests := []struct {
		name     string
		age      time.Duration
		priority bool
	}{
		{"exactlyAtThreshold", 15 * time.Minute, false},
		{"oneOverThreshold", 16 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := baseOrder(TypeDineIn, StatusPending, now.Add(-tt.age))
			enriched := Enrich(order, now, thresholds)
			require.Equal(t, tt.priority, enriched.IsPriority)
		})
	}
}

func TestEnrichCollectionWarning(t *testing.T) {
	now := time.Now()
	scheduled := now.Add(5 * time.Minute)

	order := baseOrder(TypeCollection, StatusPreparing, now.Add(-20*time.Minute))
	order.Source = SourceOnline
	order.ScheduledFor = &scheduled

	enriched := Enrich(order, now, DefaultThresholds())

	// Both the waiting-time rule and the collection promise rule fire
	// here; either way the order is priority.
	require.True(t, enriched.IsPriority)
}

func TestEnrichCollectionNotYetDue(t *testing.T) {
	now := time.Now()
	scheduled := now.Add(30 * time.Minute)

	order := baseOrder(TypeCollection, StatusPending, now.Add(-2*time.Minute))
	order.Source = SourceOnline
	order.ScheduledFor = &scheduled

	enriched := Enrich(order, now, DefaultThresholds())

	require.False(t, enriched.IsPriority)
}

func TestEnrichDeliveryWarning(t *testing.T) {
	now := time.Now()
	scheduled := now.Add(4 * time.Minute)

	order := baseOrder(TypeDelivery, StatusPreparing, now.Add(-3*time.Minute))
	order.Source = SourceOnline
	order.ScheduledFor = &scheduled

	enriched := Enrich(order, now, DefaultThresholds())

	require.True(t, enriched.IsPriority)
}

func TestEnrichStatusColorPrecedence(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		order  UnifiedOrder
		expect StatusColor
	}{
		{
			// Delayed beats priority: a delayed waiting-area order is
			// red, not orange.
			name:   "delayedBeatsPriority",
			order:  baseOrder(TypeWaiting, StatusDelayed, now.Add(-20*time.Minute)),
			expect: ColorRed,
		},
		{
			name:   "readyIsGreen",
			order:  baseOrder(TypeDineIn, StatusReady, now.Add(-20*time.Minute)),
			expect: ColorGreen,
		},
		{
			name:   "priorityIsOrange",
			order:  baseOrder(TypeDineIn, StatusPending, now.Add(-16*time.Minute)),
			expect: ColorOrange,
		},
		{
			name:   "agingIsAmber",
			order:  baseOrder(TypeDineIn, StatusPending, now.Add(-5*time.Minute)),
			expect: ColorAmber,
		},
		{
			name:   "freshIsGray",
			order:  baseOrder(TypeDineIn, StatusPending, now.Add(-1*time.Minute)),
			expect: ColorGray,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enriched := Enrich(tt.order, now, DefaultThresholds())
			require.Equal(t, tt.expect, enriched.StatusColor)
		})
	}
}

func TestEnrichTimeDisplay(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		age    time.Duration
		expect string
	}{
		{"minutesOnly", 12 * time.Minute, "12m"},
		{"justUnderAnHour", 59 * time.Minute, "59m"},
		{"overAnHour", 75 * time.Minute, "1h 15m"},
		{"severalHours", 130 * time.Minute, "2h 10m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := baseOrder(TypeDineIn, StatusPending, now.Add(-tt.age))
			enriched := Enrich(order, now, DefaultThresholds())
			require.Equal(t, tt.expect, enriched.TimeDisplay)
		})
	}
}
