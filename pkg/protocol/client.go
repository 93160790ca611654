// Package protocol speaks the newline-delimited ASCII command protocol
// of the drive/arm microcontroller over a serial port.
//
// The link has no framing and no message IDs; reliability rests on a
// strict one-outstanding-request discipline with a DONE/ERR/timeout
// classification per exchange. The Client enforces single-writer access
// with an internal mutex.
package protocol

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const pollInterval = time.Millisecond

// Client is a synchronous request/acknowledge handle on the serial link.
type Client struct {
	mu        sync.Mutex
	rw        io.ReadWriter
	closer    io.Closer
	timeout   time.Duration
	connected bool
}

// Dial opens the serial port and returns an unconnected client. Call
// Ping to verify a live peer before issuing directives.
func Dial(portName string, baud int, timeout time.Duration) (*Client, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	// Short read timeout so line polling can observe deadlines and
	// cancellation between reads.
	if err := port.SetReadTimeout(10 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	c := NewClient(port, timeout)
	c.closer = port
	return c, nil
}

// NewClient wraps an existing byte stream. Used by Dial and by tests.
func NewClient(rw io.ReadWriter, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{rw: rw, timeout: timeout}
}

// Close releases the port.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Connected reports whether the handshake has succeeded.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Ping performs the PING/PONG handshake and marks the link connected.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(cmdPing); err != nil {
		return err
	}

	deadline := time.Now().Add(c.timeout)
	for {
		line, err := c.readLine(ctx, deadline)
		if err != nil {
			c.connected = false
			return fmt.Errorf("handshake: %w", err)
		}
		if line == respPong {
			c.connected = true
			return nil
		}
		// Stale bytes from before the handshake; keep reading.
	}
}

// Do sends a directive and blocks until the peer terminates it: DONE is
// success, an ERR line is ErrPeer, EMERGENCY_STOPPED is ErrEmergencyStop,
// silence past the deadline is ErrTimeout. Cancellation via ctx is
// observed between reads; the directive itself is not recalled.
func (c *Client) Do(ctx context.Context, directive string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.exchange(ctx, directive, "")
	return err
}

// Query is Do for directives that answer with a tagged payload line
// (tag:<payload>) before their DONE. The payload is returned.
func (c *Client) Query(ctx context.Context, directive, tag string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchange(ctx, directive, tag)
}

// Send writes a directive without waiting for completion. Only for
// continuous drive directives that have no DONE by contract.
func (c *Client) Send(directive string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	return c.write(directive)
}

func (c *Client) exchange(ctx context.Context, directive, tag string) (string, error) {
	if !c.connected {
		return "", ErrNotConnected
	}
	if err := c.write(directive); err != nil {
		return "", err
	}

	payload := ""
	deadline := time.Now().Add(c.timeout)
	for {
		line, err := c.readLine(ctx, deadline)
		if err != nil {
			return "", fmt.Errorf("%s: %w", directive, err)
		}
		switch {
		case line == respDone:
			if tag != "" && payload == "" {
				return "", fmt.Errorf("%s: %w: no %s payload before DONE", directive, ErrPeer, tag)
			}
			return payload, nil
		case line == respEmergency:
			return "", fmt.Errorf("%s: %w", directive, ErrEmergencyStop)
		case strings.HasPrefix(line, respErr):
			return "", fmt.Errorf("%s: %w: %s", directive, ErrPeer, line)
		case tag != "" && strings.HasPrefix(line, tag+":"):
			payload = strings.TrimPrefix(line, tag+":")
		default:
			// Unsolicited chatter (debug prints); ignore.
		}
	}
}

// write drains stale inbound bytes and sends one directive line. The
// protocol has no framing, so every exchange starts from a clean buffer.
func (c *Client) write(directive string) error {
	c.drain()
	if _, err := io.WriteString(c.rw, directive+"\n"); err != nil {
		return fmt.Errorf("write %s: %w", directive, err)
	}
	return nil
}

// drain discards stale inbound bytes before a send. Only ports exposing
// ResetInputBuffer can do this safely; a speculative read would hang on
// a blocking stream with nothing pending, so plain streams are left as
// is and the response parser skips their stale lines instead.
func (c *Client) drain() {
	type bufferResetter interface {
		ResetInputBuffer() error
	}
	if p, ok := c.rw.(bufferResetter); ok {
		p.ResetInputBuffer()
	}
}

// readLine accumulates bytes until a newline, polling so that both the
// deadline and ctx cancellation are observed on an idle link.
func (c *Client) readLine(ctx context.Context, deadline time.Time) (string, error) {
	var line []byte
	b := make([]byte, 1)
	for {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		n, err := c.rw.Read(b)
		if n > 0 {
			if b[0] == '\n' {
				return strings.TrimRight(string(line), "\r"), nil
			}
			line = append(line, b[0])
			continue
		}
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read: %w", err)
		}
		// Nothing buffered yet.
		time.Sleep(pollInterval)
	}
}
