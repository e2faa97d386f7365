package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/fircargo/cargotrack/internal/broker/messages"
)

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	err   error
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	f.topic, f.key, f.value = topic, key, value
	return f.err
}

func TestKafkaNotifier_Publish(t *testing.T) {
	p := &fakeProducer{}
	n := NewKafkaNotifier(p, "trackcode.notify")

	ok := n.Notify(context.Background(), "AAA111", 777, "arrived")
	require.True(t, ok)
	require.Equal(t, "trackcode.notify", p.topic)
	require.Equal(t, []byte("AAA111"), p.key)

	var msg messages.NotifyRequested
	require.NoError(t, json.Unmarshal(p.value, &msg))
	require.Equal(t, messages.NotifyRequested{Code: "AAA111", ChatID: 777, Status: "arrived"}, msg)
}

func TestKafkaNotifier_PublishError(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	n := NewKafkaNotifier(p, "trackcode.notify")

	require.False(t, n.Notify(context.Background(), "AAA111", 777, "arrived"))
}
