package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Connector, any, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	conn, err := c.Connect(context.Background(), models.Configuration{"url": "redis://" + server.Addr()})
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Disconnect(conn) })

	return c, conn, server
}

func TestOptions(t *testing.T) {
	t.Parallel()

	opts, err := Options(models.Configuration{"host": "cache", "password": "pw", "db": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = Options(models.Configuration{"url": "redis://:secret@cache:6380/4"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 4, opts.DB)

	_, err = Options(models.Configuration{})
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindDatasourceConfiguration})

	_, err = Options(models.Configuration{"url": "http://cache"})
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindDatasourceConfiguration})
}

func TestExecuteCommands(t *testing.T) {
	c, conn, server := setup(t)
	ctx := context.Background()

	out, err := c.Execute(ctx, conn, nil, models.Configuration{"command": []any{"SET", "user:1", "ada lovelace"}})
	require.NoError(t, err)
	assert.Equal(t, "OK", out.(*protocol.ExecutionResult).Body)

	value, err := server.Get("user:1")
	require.NoError(t, err)
	assert.Equal(t, "ada lovelace", value)

	out, err = c.Execute(ctx, conn, nil, models.Configuration{"command": "GET user:1"})
	require.NoError(t, err)
	assert.Equal(t, "ada lovelace", out.(*protocol.ExecutionResult).Body)

	out, err = c.Execute(ctx, conn, nil, models.Configuration{"command": "GET user:2"})
	require.NoError(t, err)

	result := out.(*protocol.ExecutionResult)
	assert.True(t, result.IsExecutionSuccess)
	assert.Nil(t, result.Body)
}

func TestExecuteErrors(t *testing.T) {
	c, conn, _ := setup(t)
	ctx := context.Background()

	_, err := c.Execute(ctx, conn, nil, models.Configuration{})
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindActionConfiguration})

	_, err = c.Execute(ctx, conn, nil, models.Configuration{"command": "NOPE"})
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindActionConfiguration})

	_, err = c.Execute(ctx, nil, nil, models.Configuration{"command": "PING"})
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindConnectivity})
}

func TestConnectUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err := New(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Connect(context.Background(), models.Configuration{"url": "redis://" + addr})

	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, classify(errors.New("WRONGPASS invalid username-password pair")), &protocol.Error{Kind: protocol.KindAuthentication})
	assert.ErrorIs(t, classify(errors.New("NOAUTH Authentication required.")), &protocol.Error{Kind: protocol.KindAuthentication})
	assert.ErrorIs(t, classify(errors.New("WRONGTYPE Operation against a key")), &protocol.Error{Kind: protocol.KindActionConfiguration})

	plain := errors.New("dial tcp: connection refused")
	assert.Equal(t, plain, classify(plain))
}
