package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Common errors
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// Client is the synchronous control client used by powerctl. One request
// is in flight at a time; the daemon answers in order.
type Client struct {
	cfg    ClientConfig
	mu     sync.Mutex
	conn   net.Conn
	nextID atomic.Uint32
}

// ClientConfig configures the IPC client
type ClientConfig struct {
	SocketPath     string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns defaults rooted in the daemon runtime dir.
func DefaultClientConfig(runtimeDir string) ClientConfig {
	return ClientConfig{
		SocketPath:     filepath.Join(runtimeDir, "powerhintd.sock"),
		ConnectTimeout: 3 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Dial connects to the daemon socket.
func Dial(cfg ClientConfig) (*Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 3 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.Dial("unix", cfg.SocketPath)
	if err != nil {
		// Missing socket or a stale one nobody listens on both mean the
		// daemon is down.
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, unix.ECONNREFUSED) {
			return nil, ErrDaemonNotRunning
		}
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &Client{cfg: cfg, conn: conn}, nil
}

// Close closes the connection to the daemon
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// request sends one message and reads the matching response.
func (c *Client) request(msgType MessageType, payload any) (*Message, error) {
	var data []byte
	if payload != nil {
		var err error
		data, err = Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	reqID := c.nextID.Add(1)
	msg := NewMessage(msgType, reqID, data)

	c.conn.SetDeadline(time.Now().Add(c.cfg.RequestTimeout))
	if err := msg.Write(c.conn); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	resp, err := ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.Header.RequestID != reqID {
		return nil, fmt.Errorf("response correlation mismatch: got %d, want %d",
			resp.Header.RequestID, reqID)
	}
	if resp.Header.Type == MsgError {
		var errResp ErrorResponse
		if err := Decode(resp.Payload, &errResp); err != nil {
			return nil, fmt.Errorf("daemon error (undecodable payload)")
		}
		return nil, fmt.Errorf("daemon error: %s", errResp.Message)
	}

	return resp, nil
}

// Ping checks if the daemon is responsive
func (c *Client) Ping() error {
	resp, err := c.request(MsgPing, nil)
	if err != nil {
		return err
	}
	if resp.Header.Type != MsgPong {
		return fmt.Errorf("unexpected response type: %d", resp.Header.Type)
	}
	return nil
}

// SendHint injects one performance-intent event.
func (c *Client) SendHint(kind string, data int32) error {
	resp, err := c.request(MsgHintEvent, &HintEventRequest{Kind: kind, Data: data})
	if err != nil {
		return err
	}
	if resp.Header.Type != MsgHintAck {
		return fmt.Errorf("unexpected response type: %d", resp.Header.Type)
	}
	return nil
}

// Status requests the daemon status
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.request(MsgStatusRequest, nil)
	if err != nil {
		return nil, err
	}
	if resp.Header.Type != MsgStatusResponse {
		return nil, fmt.Errorf("unexpected response type: %d", resp.Header.Type)
	}

	var status StatusResponse
	if err := Decode(resp.Payload, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Dump requests the daemon's diagnostic dump.
func (c *Client) Dump() (string, error) {
	resp, err := c.request(MsgDumpRequest, nil)
	if err != nil {
		return "", err
	}
	if resp.Header.Type != MsgDumpResponse {
		return "", fmt.Errorf("unexpected response type: %d", resp.Header.Type)
	}

	var dump DumpResponse
	if err := Decode(resp.Payload, &dump); err != nil {
		return "", err
	}
	return dump.Text, nil
}
