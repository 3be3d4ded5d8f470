package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
	"github.com/zeusync/virtualcam/internal/server"
)

func startPanel(t *testing.T, maxClients int) (*server.ControlServer, *controls.Board) {
	t.Helper()
	board, err := controls.NewBoard(controls.Layout([3]float64{5, 5, 4}, [3]float64{0, 0, 0.5}, 30)...)
	require.NoError(t, err)

	config := server.DefaultServerConfig()
	config.ListenAddr = "127.0.0.1:0"
	if maxClients > 0 {
		config.MaxClients = maxClients
	}
	srv := server.NewControlServer(config, board, log.NewNop())
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv, board
}

func newTestClient(t *testing.T, srv *server.ControlServer) *Client {
	t.Helper()
	config := DefaultClientConfig()
	config.ServerAddr = srv.Addr().String()
	config.ConnectTimeout = 2 * time.Second
	config.Logger = log.NewNop()

	c := NewClient(config)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnectMirrorsSnapshot(t *testing.T) {
	srv, _ := startPanel(t, 0)
	c := newTestClient(t, srv)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())

	v, ok := c.Value(controls.CameraX)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	cs := c.Controls()
	require.Len(t, cs, 13)
	assert.Equal(t, controls.StreamCamera, cs[0].Name)
	assert.Equal(t, false, cs[0].Value)

	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)
}

func TestSetRoundTrip(t *testing.T) {
	srv, board := startPanel(t, 0)
	c := newTestClient(t, srv)
	require.NoError(t, c.Connect(context.Background()))

	updates := make(chan string, 4)
	c.OnUpdate(func(name string, _ any) { updates <- name })

	require.NoError(t, c.Set(controls.StreamCamera, true))

	select {
	case name := <-updates:
		assert.Equal(t, controls.StreamCamera, name)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	streaming, err := controls.Bool(board, controls.StreamCamera)
	require.NoError(t, err)
	assert.True(t, streaming)

	v, _ := c.Value(controls.StreamCamera)
	assert.Equal(t, true, v)
}

func TestServerSideChangesArePushed(t *testing.T) {
	srv, board := startPanel(t, 0)
	c := newTestClient(t, srv)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, board.SetValue(controls.Status, "Streaming to window..."))

	assert.Eventually(t, func() bool {
		v, _ := c.Value(controls.Status)
		return v == "Streaming to window..."
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRejectedSetRaisesErrorEvent(t *testing.T) {
	srv, _ := startPanel(t, 0)
	c := newTestClient(t, srv)

	var (
		mu   sync.Mutex
		errs []error
	)
	c.OnEvent(EventTypeError, func(event Event) error {
		mu.Lock()
		errs = append(errs, event.Error)
		mu.Unlock()
		return nil
	})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Set(controls.Status, "hacked"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.ErrorIs(t, errs[0], ErrRequestRejected)
	mu.Unlock()
}

func TestCloseAndDisconnect(t *testing.T) {
	srv, _ := startPanel(t, 0)
	c := newTestClient(t, srv)
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, srv.Connected, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())

	assert.ErrorIs(t, c.Set(controls.Pause, true), ErrClientClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)

	assert.Eventually(t, func() bool { return !srv.Connected() }, 2*time.Second, 10*time.Millisecond)
}

func TestServerStopRaisesDisconnected(t *testing.T) {
	srv, _ := startPanel(t, 0)
	c := newTestClient(t, srv)

	lost := make(chan struct{}, 1)
	c.OnEvent(EventTypeDisconnected, func(Event) error {
		lost <- struct{}{}
		return nil
	})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, srv.Stop(context.Background()))

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Set(controls.Pause, true), ErrNotConnected)
}

func TestRejectedConnection(t *testing.T) {
	srv, _ := startPanel(t, 1)

	first := newTestClient(t, srv)
	require.NoError(t, first.Connect(context.Background()))
	require.Eventually(t, srv.Connected, 2*time.Second, 10*time.Millisecond)

	second := newTestClient(t, srv)
	err := second.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, second.IsConnected())
	assert.ErrorIs(t, second.Set(controls.Pause, true), ErrNotConnected)
	assert.EqualValues(t, 1, srv.GetStats().ClientCount)

	// the rejected client can retry once the slot is free
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return !srv.Connected() }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, second.Connect(context.Background()))
	assert.True(t, second.IsConnected())
}

func TestDialFailure(t *testing.T) {
	config := DefaultClientConfig()
	config.ServerAddr = "127.0.0.1:1"
	config.ConnectTimeout = time.Second
	config.Logger = log.NewNop()

	c := NewClient(config)
	assert.Error(t, c.Connect(context.Background()))
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Set(controls.Pause, true), ErrNotConnected)
}
