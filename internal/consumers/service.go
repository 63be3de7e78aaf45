package consumers

import (
	"context"
	"log/slog"

	"booknow/internal/models"

	"github.com/nats-io/stan.go"
)

// Subscriber is the part of the NATS client the consumers need
type Subscriber interface {
	Subscribe(subject string, handler stan.MsgHandler) (stan.Subscription, error)
}

type ConsumerService struct {
	nats     Subscriber
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(nats Subscriber, sessions Broadcaster) *ConsumerService {
	return &ConsumerService{
		nats:     nats,
		handlers: NewHandlers(sessions),
	}
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	sub, err := cs.nats.Subscribe(models.EventSeatStatusChanged, cs.handlers.HandleSeatStatusChanged)
	if err != nil {
		return err
	}
	cs.subs = append(cs.subs, sub)

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}
	cs.subs = nil
	return nil
}
