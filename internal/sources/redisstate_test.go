package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/resto/services/kitchen/internal/kitchen"
)

func sampleState() TableState {
	return TableState{
		TableNumber: 12,
		WaitingArea: true,
		Orders: []TableStateOrder{
			{
				ID:        "to-1",
				CreatedAt: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
				Items: []TableStateItem{
					{Name: "Haddock", Quantity: 1, Status: "preparing"},
					{Name: "Cola", Quantity: 2, Status: "served"},
				},
			},
			{
				ID:        "to-2",
				CreatedAt: time.Date(2025, 6, 1, 18, 10, 0, 0, time.UTC),
				Items: []TableStateItem{
					{Name: "Chips", Quantity: 1, Status: "ordered", Notes: "extra salt"},
				},
			},
		},
	}
}

func TestStateToRecords(t *testing.T) {
	records := stateToRecords(sampleState())
	require.Len(t, records, 2)

	require.Equal(t, "to-1", records[0].ID)
	require.Equal(t, 12, records[0].TableNumber)
	require.True(t, records[0].WaitingArea)
	require.Len(t, records[0].Items, 2)

	require.Equal(t, "to-2", records[1].ID)
	require.Equal(t, "extra salt", records[1].Items[0].Notes)

	// The records adapt cleanly into unified orders.
	order, err := kitchen.AdaptTableOrder(records[0])
	require.NoError(t, err)
	require.Equal(t, kitchen.TypeWaiting, order.Type)
	require.Equal(t, kitchen.StatusPreparing, order.Status)
}

func TestRewriteOrderStatus(t *testing.T) {
	state := sampleState()

	require.True(t, rewriteOrderStatus(&state, "to-1", "ready"))

	// Active items move; terminal items stay untouched.
	require.Equal(t, "ready", state.Orders[0].Items[0].Status)
	require.Equal(t, "served", state.Orders[0].Items[1].Status)

	// The other order on the table is untouched.
	require.Equal(t, "ordered", state.Orders[1].Items[0].Status)
}

func TestRewriteOrderStatusUnknownOrder(t *testing.T) {
	state := sampleState()
	require.False(t, rewriteOrderStatus(&state, "to-99", "ready"))
}
