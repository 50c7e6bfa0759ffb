package ipc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerhintd/internal/display"
	"powerhintd/internal/governor"
	"powerhintd/internal/power"
	"powerhintd/internal/sysprop"
)

// recordingEngine is a minimal hint engine for end-to-end tests.
type recordingEngine struct {
	mu    sync.Mutex
	calls []string
}

func (e *recordingEngine) Begin(name string) { e.record("begin " + name) }

func (e *recordingEngine) BeginFor(name string, d time.Duration) {
	e.record(fmt.Sprintf("begin_for %s %s", name, d))
}

func (e *recordingEngine) End(name string) { e.record("end " + name) }

func (e *recordingEngine) Running() bool { return true }

func (e *recordingEngine) Dump(w io.Writer) { fmt.Fprintln(w, "engine detail") }

func (e *recordingEngine) record(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, s)
}

func (e *recordingEngine) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

type noopInteractions struct{}

func (noopInteractions) Acquire(int32) {}

// newTestDaemon wires a power service behind an IPC server on a temp
// socket. With ready false the init property is withheld, leaving the
// service stuck waiting.
func newTestDaemon(t *testing.T, ready bool) (ClientConfig, *recordingEngine) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	govPath := filepath.Join(dir, "scaling_governor")
	require.NoError(t, os.WriteFile(govPath, []byte("schedutil\n"), 0o644))
	gate := governor.New(govPath, nil, logger)

	props, err := sysprop.NewStore(filepath.Join(dir, "props"))
	require.NoError(t, err)
	if ready {
		require.NoError(t, props.Set("powerhint.init", "1"))
	}

	engine := &recordingEngine{}
	svc := power.New(power.Options{
		LoadEngine:      func() (power.Engine, error) { return engine, nil },
		NewInteractions: func(power.Engine) power.Interactions { return noopInteractions{} },
		Gate:            gate,
		Props:           props,
		Display:         display.Disabled{},
		Log:             logger,
		InitKey:         "powerhint.init",
		InitValue:       "1",
		StateKey:        "powerhint.state",
		AudioKey:        "powerhint.audio",
		RenderingKey:    "powerhint.rendering",
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc.Start(ctx)
	if ready {
		require.Eventually(t, svc.Ready, 3*time.Second, 5*time.Millisecond)
	}

	handler := NewDaemonHandler(DaemonHandlerConfig{
		Version: "test",
		Service: svc,
		Gate:    gate,
		Log:     logger,
	})

	scfg := DefaultServerConfig(dir)
	scfg.Log = logger
	srv := NewServer(scfg, handler)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	return DefaultClientConfig(dir), engine
}

func dialTestDaemon(t *testing.T, cfg ClientConfig) *Client {
	t.Helper()
	client, err := Dial(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPingPong(t *testing.T) {
	cfg, _ := newTestDaemon(t, true)
	client := dialTestDaemon(t, cfg)

	require.NoError(t, client.Ping())
}

func TestHintEventEndToEnd(t *testing.T) {
	cfg, engine := newTestDaemon(t, true)
	client := dialTestDaemon(t, cfg)

	require.NoError(t, client.SendHint("VR_MODE", 1))
	assert.Equal(t, []string{"begin VR"}, engine.snapshot())

	status, err := client.Status()
	require.NoError(t, err)
	assert.Equal(t, "test", status.Version)
	assert.True(t, status.Ready)
	assert.True(t, status.EngineRunning)
	assert.Equal(t, "schedutil", status.Governor)
	assert.True(t, status.GovernorEligible)
	assert.True(t, status.VRMode)
	assert.False(t, status.SustainedMode)
	assert.False(t, status.CameraStreaming)
}

func TestHintEventUnknownKind(t *testing.T) {
	cfg, engine := newTestDaemon(t, true)
	client := dialTestDaemon(t, cfg)

	err := client.SendHint("TURBO_MODE", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event kind")
	assert.Empty(t, engine.snapshot())
}

func TestDumpEndToEnd(t *testing.T) {
	cfg, _ := newTestDaemon(t, true)
	client := dialTestDaemon(t, cfg)

	require.NoError(t, client.SendHint("VR_MODE", 1))

	text, err := client.Dump()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "HintManager Running: true\nVRMode: true\n"), "dump:\n%s", text)
	assert.Contains(t, text, "engine detail")
}

func TestStatusBeforeReady(t *testing.T) {
	cfg, _ := newTestDaemon(t, false)
	client := dialTestDaemon(t, cfg)

	status, err := client.Status()
	require.NoError(t, err)
	assert.False(t, status.Ready)
	assert.False(t, status.EngineRunning)

	text, err := client.Dump()
	require.NoError(t, err)
	assert.Empty(t, text, "dump must stay empty before initialization")
}

func TestHandlerErrorReachesClient(t *testing.T) {
	dir := t.TempDir()
	scfg := DefaultServerConfig(dir)
	scfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := HandlerFunc(func(ctx context.Context, msg *Message) (*Message, error) {
		return nil, fmt.Errorf("journal unavailable")
	})
	srv := NewServer(scfg, handler)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	client := dialTestDaemon(t, DefaultClientConfig(dir))

	_, err := client.Status()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon error: journal unavailable")

	// Pings are answered by the server itself and never reach the handler.
	require.NoError(t, client.Ping())
}

func TestUnsupportedMessageType(t *testing.T) {
	cfg, _ := newTestDaemon(t, true)

	conn, err := net.Dial("unix", cfg.SocketPath)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, NewMessage(MessageType(0x0999), 5, nil).Write(conn))

	resp, err := ReadMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, MsgError, resp.Header.Type)
	assert.Equal(t, uint32(5), resp.Header.RequestID)

	var errResp ErrorResponse
	require.NoError(t, Decode(resp.Payload, &errResp))
	assert.Equal(t, ErrInvalidRequest, errResp.Code)
}

func TestGarbageFrameClosesConnection(t *testing.T) {
	cfg, _ := newTestDaemon(t, true)

	conn, err := net.Dial("unix", cfg.SocketPath)
	require.NoError(t, err)
	defer conn.Close()

	garbage := make([]byte, 64)
	for i := range garbage {
		garbage[i] = 0xFF
	}
	_, err = conn.Write(garbage)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err, "server must close the connection on a malformed frame")
}

func TestDialMissingSocket(t *testing.T) {
	cfg := DefaultClientConfig(t.TempDir())

	_, err := Dial(cfg)
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestDialStaleSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "powerhintd.sock")

	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())

	cfg := DefaultClientConfig(dir)
	_, err = Dial(cfg)
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestStartRecoversStaleSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "powerhintd.sock")

	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())

	scfg := DefaultServerConfig(dir)
	scfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(scfg, nil)
	require.NoError(t, srv.Start())
	require.NoError(t, srv.Stop())
}

func TestStartRefusesNonSocketPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "powerhintd.sock")
	require.NoError(t, os.WriteFile(path, []byte("not a socket"), 0o644))

	scfg := DefaultServerConfig(dir)
	scfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(scfg, nil)
	err := srv.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a socket")
}

func TestStopRemovesSocket(t *testing.T) {
	dir := t.TempDir()
	scfg := DefaultServerConfig(dir)
	scfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(scfg, nil)
	require.NoError(t, srv.Start())

	_, err := os.Stat(srv.SocketPath())
	require.NoError(t, err)

	require.NoError(t, srv.Stop())
	_, err = os.Stat(srv.SocketPath())
	assert.True(t, os.IsNotExist(err))

	// Second stop is a no-op.
	require.NoError(t, srv.Stop())
}
