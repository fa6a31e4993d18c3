package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/resto/services/kitchen/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MessageHandler processes one received online-order event. Returning an
// error abandons the message back onto the queue.
type MessageHandler func(ctx context.Context, message *azservicebus.ReceivedMessage) error

// ServiceBus wraps the Azure Service Bus queue carrying online-order
// events from the ordering platform.
type ServiceBus struct {
	client    *azservicebus.Client
	queueName string
}

// NewServiceBus creates a new Service Bus client for the configured queue
func NewServiceBus(cfg config.AzureConfig) (*ServiceBus, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	return &ServiceBus{
		client:    client,
		queueName: cfg.QueueName,
	}, nil
}

// ProcessMessages receives from the queue in batches until the context
// ends, completing handled messages and abandoning failed ones back to
// the queue.
func (s *ServiceBus) ProcessMessages(ctx context.Context, handler MessageHandler) error {
	receiver, err := s.client.NewReceiverForQueue(s.queueName, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus receiver")
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("Error receiving messages, retrying")
			time.Sleep(2 * time.Second)
			continue
		}

		for _, message := range messages {
			if err := handler(ctx, message); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error processing message")
				if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
					log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to abandon message")
				}
				continue
			}

			if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to complete message")
			}
		}
	}
}

// SendMessage publishes a message to the queue. Used by tooling to
// replay or seed online-order events.
func (s *ServiceBus) SendMessage(ctx context.Context, body interface{}) error {
	sender, err := s.client.NewSender(s.queueName, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus sender")
	}
	defer func() {
		if err := sender.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus sender")
		}
	}()

	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message body")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "kitchen-service",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return sender.SendMessage(ctx, msg, nil)
}

// Close closes the Service Bus client
func (s *ServiceBus) Close() error {
	if s.client != nil {
		return s.client.Close(context.Background())
	}
	return nil
}
