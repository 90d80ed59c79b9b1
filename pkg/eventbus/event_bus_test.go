package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/actionhub/pkg/channels/gochannel"
	"github.com/dukex/actionhub/pkg/eventbus"
	"github.com/dukex/actionhub/pkg/events"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func installEvent() *events.PluginInstallRequested {
	return events.NewPluginInstallRequested("instance-a", &models.OrganizationPlugin{
		OrganizationID: "org-1",
		PluginID:       "mongo",
		Status:         models.PluginStatusInstalling,
	})
}

func receiveInstall(t *testing.T, bus eventbus.EventBus) <-chan *events.PluginInstallRequested {
	t.Helper()

	received := make(chan *events.PluginInstallRequested, 1)

	require.NoError(t, bus.Handle(events.PluginInstallRequestedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.PluginInstallRequested)

		return nil
	}))

	return received
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(testLogger(), pub, sub)
	defer func() { _ = bus.Close() }()

	received := receiveInstall(t, bus)
	require.NoError(t, bus.Subscribe(ctx))

	sent := installEvent()
	require.NoError(t, bus.Publish(ctx, "org-1", sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, "org-1", got.OrganizationID)
		assert.Equal(t, "mongo", got.PluginOrg.PluginID)
		assert.Equal(t, models.PluginStatusInstalling, got.PluginOrg.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_FailedHandlerIsRedelivered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(testLogger(), pub, sub)
	defer func() { _ = bus.Close() }()

	var calls atomic.Int32

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.PluginInstallRequestedEvent, func(context.Context, any) error {
		if calls.Add(1) == 1 {
			return errors.New("try again")
		}

		close(done)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "org-1", installEvent()))

	select {
	case <-done:
		assert.Equal(t, int32(2), calls.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("event not redelivered")
	}
}

func TestRedisEventBus_FanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)

	newBus := func() eventbus.EventBus {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		return eventbus.NewRedisEventBus(testLogger(), client)
	}

	first, second := newBus(), newBus()
	defer func() { _ = first.Close() }()
	defer func() { _ = second.Close() }()

	firstReceived := receiveInstall(t, first)
	secondReceived := receiveInstall(t, second)

	require.NoError(t, first.Subscribe(ctx))
	require.NoError(t, second.Subscribe(ctx))

	sent := installEvent()
	require.NoError(t, first.Publish(ctx, "org-1", sent))

	for _, ch := range []<-chan *events.PluginInstallRequested{firstReceived, secondReceived} {
		select {
		case got := <-ch:
			assert.Equal(t, sent.ID, got.ID)
			assert.Equal(t, "mongo", got.PluginOrg.PluginID)
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered to every instance")
		}
	}
}

func TestRedisEventBus_PublishFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = client.Close() }()

	bus := eventbus.NewRedisEventBus(testLogger(), client)

	mr.Close()

	err := bus.Publish(context.Background(), "org-1", installEvent())
	assert.Error(t, err)
}
