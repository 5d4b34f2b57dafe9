package main

import (
	"context"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	pub := &kafkaPublisher{writer: w, topic: "orders"}

	res := pub.Publish(context.Background(), &gcppubsub.Message{
		Data: []byte(`{"status":"PLACED"}`),
		Attributes: map[string]string{
			"event_id":     "evt-1",
			"aggregate_id": "order-9",
			"event_type":   "order_placed",
		},
	})
	id, err := res.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "evt-1", id)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "orders", msg.Topic)
	assert.Equal(t, "order-9", string(msg.Key))
	assert.JSONEq(t, `{"status":"PLACED"}`, string(msg.Value))
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "aggregate_id", msg.Headers[0].Key)
	assert.Equal(t, "event_type", msg.Headers[2].Key)
}

func TestKafkaPublisherSurfacesWriteError(t *testing.T) {
	pub := &kafkaPublisher{writer: &fakeWriter{err: errors.New("leader not available")}, topic: "orders"}

	_, err := pub.Publish(context.Background(), &gcppubsub.Message{}).Get(context.Background())
	require.Error(t, err)
}

func TestKafkaTransportRequiresBrokers(t *testing.T) {
	_, err := newKafkaTransport(nil)
	require.Error(t, err)

	tr, err := newKafkaTransport([]string{"localhost:9092"})
	require.NoError(t, err)
	assert.Nil(t, tr.publishers()(""))
	assert.NotNil(t, tr.publishers()("orders"))
}
