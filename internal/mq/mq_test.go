package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dlms-org/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
	closed  bool
}

func (b *recordingBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.channel, b.data, b.attrs = channel, data, attrs
	return "msg-1", nil
}

func (b *recordingBackend) Subscribe(context.Context, string, Handler) error { return nil }

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestMQ_PublishJSON(t *testing.T) {
	backend := &recordingBackend{}
	q := New(backend)

	id, err := q.PublishJSON(context.Background(), "license.issued", map[string]int{"user_id": 4}, map[string]string{"type": "license.issued"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "license.issued", backend.channel)
	assert.JSONEq(t, `{"user_id":4}`, string(backend.data))
	assert.Equal(t, "license.issued", backend.attrs["type"])
}

func TestMQ_PublishJSON_MarshalError(t *testing.T) {
	q := New(&recordingBackend{})

	_, err := q.PublishJSON(context.Background(), "license.issued", make(chan int), nil)
	var jsonErr *json.UnsupportedTypeError
	assert.True(t, errors.As(err, &jsonErr))
}

func TestMQ_CloseNil(t *testing.T) {
	var q *MQ
	assert.NoError(t, q.Close())

	backend := &recordingBackend{}
	require.NoError(t, New(backend).Close())
	assert.True(t, backend.closed)
}

func TestOpen(t *testing.T) {
	q, err := Open(context.Background(), config.MQConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, q)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.ErrorContains(t, err, "rabbitmq url is required")
}

func TestMessage_Decode(t *testing.T) {
	var payload struct {
		UserID int `json:"user_id"`
	}
	require.NoError(t, Message{ID: "1", Data: []byte(`{"user_id":9}`)}.Decode(&payload))
	assert.Equal(t, 9, payload.UserID)

	assert.Error(t, Message{ID: "2", Data: []byte(`{`)}.Decode(&payload))
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	assert.Equal(t, map[string]string{
		"type":    "license.renewed",
		"user_id": "12",
		"raw":     "bytes",
	}, headersToAttributes(amqp.Table{
		"type":    "license.renewed",
		"user_id": int32(12),
		"raw":     []byte("bytes"),
	}))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "license-issued", topicName("license.issued"))
	assert.Equal(t, "license.issued.notify", queueName("license.issued", ".notify"))
}
