package ingest

import (
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/stretchr/testify/require"
)

func TestExtractOrderEvent(t *testing.T) {
	body := []byte(`{
		"event_type": "order.updated",
		"payload": {
			"external_ref": "web-4471",
			"status": "confirmed",
			"order_type": "collection",
			"customer_name": "J. Morgan",
			"items": [{"name": "Large Cod", "quantity": 1}],
			"total_amount": 1250,
			"placed_at": "2025-06-01T18:45:00Z",
			"scheduled_for": "2025-06-01T19:30:00Z"
		}
	}`)

	event, err := ExtractOrderEvent(&azservicebus.ReceivedMessage{Body: body})
	require.NoError(t, err)

	require.Equal(t, "web-4471", event.ExternalRef)
	require.Equal(t, "confirmed", event.Status)
	require.Equal(t, "collection", event.OrderType)
	require.Equal(t, "J. Morgan", event.CustomerName)
	require.Len(t, event.Items, 1)
	require.Equal(t, int32(1250), event.TotalAmount)
	require.Equal(t, time.Date(2025, 6, 1, 18, 45, 0, 0, time.UTC), event.PlacedAt)
	require.NotNil(t, event.ScheduledFor)
	require.Equal(t, time.Date(2025, 6, 1, 19, 30, 0, 0, time.UTC), *event.ScheduledFor)
}

func TestExtractOrderEventInvalidEnvelope(t *testing.T) {
	_, err := ExtractOrderEvent(&azservicebus.ReceivedMessage{Body: []byte(`not json`)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to unmarshal message envelope")
}

func TestExtractOrderEventInvalidPayload(t *testing.T) {
	body := []byte(`{"event_type": "order.updated", "payload": "just a string"}`)

	_, err := ExtractOrderEvent(&azservicebus.ReceivedMessage{Body: body})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to unmarshal order payload")
}
