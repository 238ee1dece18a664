package transport

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/devhack/hacklet/internal/ctxlog"
)

// Port is the raw byte pipe beneath a Connection: an open FTDI device, a
// tty, or a test fake.
type Port interface {
	io.ReadWriteCloser
}

// Default polling parameters, matching the stock client's behavior.
const (
	readChunkSize = 64
	idleInterval  = 100 * time.Millisecond
)

// Connection frames reads and writes over a Port. Receive returns exactly
// the number of bytes requested and keeps any surplus buffered for the
// next call, which is what the dongle's length-prefixed frames require.
type Connection struct {
	port Port
	buf  []byte
	idle time.Duration
}

// New wraps a Port in a Connection.
func New(port Port) *Connection {
	return &Connection{port: port, idle: idleInterval}
}

// Transmit writes a complete frame to the dongle.
func (c *Connection) Transmit(ctx context.Context, frame []byte) error {
	ctxlog.FromContext(ctx).Debug("TX", "bytes", hex.EncodeToString(frame))
	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("transport: write failed: %w", err)
	}
	return nil
}

// Receive blocks until n bytes are available and returns them. The dongle
// delivers data in small bursts, so the port is polled in fixed chunks
// with an idle sleep between empty reads. Cancelling the context aborts
// the wait.
func (c *Connection) Receive(ctx context.Context, n int) ([]byte, error) {
	chunk := make([]byte, readChunkSize)
	for len(c.buf) < n {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("transport: receive aborted: %w", err)
		}

		m, err := c.port.Read(chunk)
		if m > 0 {
			c.buf = append(c.buf, chunk[:m]...)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("transport: read failed: %w", err)
		}

		// Nothing buffered on the device yet.
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transport: receive aborted: %w", ctx.Err())
		case <-time.After(c.idle):
		}
	}

	out := c.buf[:n:n]
	c.buf = c.buf[n:]
	ctxlog.FromContext(ctx).Debug("RX", "bytes", hex.EncodeToString(out))
	return out, nil
}

// Close releases the underlying port.
func (c *Connection) Close() error {
	return c.port.Close()
}
