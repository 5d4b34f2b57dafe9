package main

import (
	"context"
	"errors"
	"sort"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/segmentio/kafka-go"
)

type kafkaTransport struct {
	brokers []string
	writer  *kafka.Writer
}

func newKafkaTransport(brokers []string) (*kafkaTransport, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	return &kafkaTransport{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}, nil
}

func (k *kafkaTransport) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

func (k *kafkaTransport) Close() error {
	return k.writer.Close()
}

func (k *kafkaTransport) publishers() publisherFactory {
	return func(topic string) publisher {
		if topic == "" {
			return nil
		}
		return &kafkaPublisher{writer: k.writer, topic: topic}
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// kafkaPublisher writes synchronously; the returned result is already
// settled.
type kafkaPublisher struct {
	writer messageWriter
	topic  string
}

func (p *kafkaPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	km := toKafkaMessage(p.topic, msg)
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		return settled{err: err}
	}
	return settled{id: msg.Attributes["event_id"]}
}

// toKafkaMessage keys by aggregate so events for one order land on one
// partition in write order.
func toKafkaMessage(topic string, msg *gcppubsub.Message) kafka.Message {
	keys := make([]string, 0, len(msg.Attributes))
	for k := range msg.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(msg.Attributes[k])})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.Attributes["aggregate_id"]),
		Value:   msg.Data,
		Headers: headers,
	}
}
