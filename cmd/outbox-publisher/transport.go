package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/pubsub"
)

// Events are built as Pub/Sub messages; the Kafka side converts them.
type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// publisherFactory returns nil for a topic the broker does not know.
type publisherFactory func(topic string) publisher

// transport is one connected broker as seen by the publish loop.
type transport struct {
	broker     broker
	publishers publisherFactory
	system     attribute.KeyValue
	close      func() error
}

// openTransport connects ORDERFLOW_OUTBOX_TRANSPORT, pubsub by default.
func openTransport(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*transport, error) {
	switch kind := strings.ToLower(strings.TrimSpace(cfg.Outbox.Transport)); kind {
	case "", "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, err
		}
		return &transport{
			broker:     client,
			publishers: pubsubTopics(client),
			system:     semconv.MessagingSystemGCPPubsub,
			close:      client.Close,
		}, nil
	case "kafka":
		k, err := newKafkaTransport(cfg.Outbox.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		return &transport{
			broker:     k,
			publishers: k.publishers(),
			system:     semconv.MessagingSystemKafka,
			close:      k.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown outbox transport %q", kind)
	}
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// pubsubTopics adapts the client's per-topic publishers. The client keeps
// them, so a topic created after startup is picked up on the next lookup.
func pubsubTopics(src topicSource) publisherFactory {
	return func(topic string) publisher {
		gp := src.Publisher(topic)
		if gp == nil {
			return nil
		}
		return pubsubPublisher{gp}
	}
}

type pubsubPublisher struct {
	topic *gcppubsub.Publisher
}

func (p pubsubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := p.topic.Publish(ctx, msg)
	if res == nil {
		return settled{err: errors.New("pubsub returned no publish result")}
	}
	return res
}

// settled is a publishResult known at Publish time.
type settled struct {
	id  string
	err error
}

func (r settled) Get(context.Context) (string, error) {
	return r.id, r.err
}
