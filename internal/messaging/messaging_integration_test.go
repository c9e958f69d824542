//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func TestRabbitMQPublishReceive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	publisher, err := NewRabbitMQPublisher(url)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := NewRabbitMQReceiver(url)
	require.NoError(t, err)
	defer receiver.Close()

	jobId := uuid.New()
	require.NoError(t, publisher.PublishExtractJob(ctx, ExtractJobPayload{JobId: jobId}))

	select {
	case task := <-receiver.Tasks():
		assert.Equal(t, ExtractJobQueue, task.Type())

		var payload ExtractJobPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		assert.Equal(t, jobId, payload.JobId)
		require.NoError(t, task.Ack())
	case <-ctx.Done():
		t.Fatal("timed out waiting for task")
	}
}

func TestRabbitMQDeadLetterAndClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	publisher, err := NewRabbitMQPublisher(url)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := NewRabbitMQReceiver(url)
	require.NoError(t, err)

	jobId := uuid.New()
	require.NoError(t, publisher.PublishExtractJob(ctx, ExtractJobPayload{JobId: jobId}))

	select {
	case task := <-receiver.Tasks():
		require.NoError(t, task.Reject())
	case <-ctx.Done():
		t.Fatal("timed out waiting for task")
	}

	receiver.Close()
	for range receiver.Tasks() {
	}

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	channel, err := conn.Channel()
	require.NoError(t, err)

	var dead amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		dead, ok, err = channel.Get(deadLetterQueue(ExtractJobQueue), true)
		return err == nil && ok
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, jobId.String(), dead.MessageId)
	assert.Equal(t, ExtractJobQueue, dead.Type)

	var payload ExtractJobPayload
	require.NoError(t, json.Unmarshal(dead.Body, &payload))
	assert.Equal(t, jobId, payload.JobId)
}

func TestRabbitMQPublishAfterClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	publisher, err := NewRabbitMQPublisher(url)
	require.NoError(t, err)

	publisher.Close()
	publisher.Close()

	assert.Error(t, publisher.PublishExtractJob(ctx, ExtractJobPayload{JobId: uuid.New()}))
}
