package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/mpr/internal/models"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

type ControlHandler func(ctx context.Context, cmd models.SessionCommand) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeSightings starts consuming sighting events (for the API to persist
// and broadcast via WebSocket).
func (c *Consumer) ConsumeSightings(ctx context.Context, consumerName string, handler MessageHandler) error {
	stream, err := c.js.Stream(ctx, SightingsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", SightingsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: SightingsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				if err := handler(ctx, msg); err != nil {
					slog.Error("process sighting error", "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("sighting consumer started", "consumer", consumerName)
	return nil
}

// SubscribeControl listens for session commands on the raw control subject.
// The watcher uses this to receive start/stop from the API.
func (c *Consumer) SubscribeControl(ctx context.Context, handler ControlHandler) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(ControlSubject, func(msg *nats.Msg) {
		var cmd models.SessionCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			slog.Error("decode session command", "error", err)
			return
		}
		if err := handler(ctx, cmd); err != nil {
			slog.Error("handle session command", "action", cmd.Action,
				"session_id", cmd.SessionID, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", ControlSubject, err)
	}

	slog.Info("control subscription started", "subject", ControlSubject)
	return sub, nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
