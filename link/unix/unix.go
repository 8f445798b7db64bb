// Package unix implements an exchange over a Unix domain stream socket.
//
// Payloads are framed by an 8-byte little-endian length prefix. The receiver
// owns the socket file: it listens, accepts any number of senders, and removes
// the file when closed. Senders retry connecting while the socket file is not
// there yet.
package unix

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
	"github.com/zero-day-ai/flowgraph/internal/docfmt"
)

const (
	retryInterval = 100 * time.Millisecond
	headerSize    = 8
	bufferSize    = 2

	// DefaultMaxFrameSize bounds a payload when max_frame_size is unset.
	DefaultMaxFrameSize = 64 << 20
)

var (
	// ErrNoPath is returned when the configuration names no socket path.
	ErrNoPath = errors.New("unix exchange: path must be specified")

	// ErrConnectTimeout is returned when a sender could not connect before
	// its connect timeout elapsed.
	ErrConnectTimeout = errors.New("unix exchange: connection timeout")

	// ErrClosed is returned by operations on a closed sender or receiver.
	ErrClosed = errors.New("unix exchange: closed")

	// ErrFrameTooLarge is returned for a payload above the frame size limit.
	ErrFrameTooLarge = errors.New("unix exchange: frame too large")
)

// Config configures a Unix socket exchange.
type Config struct {
	// Path is the socket file.
	Path string `json:"path" yaml:"path"`

	// Force removes an existing file at Path before the receiver binds.
	Force bool `json:"force,omitempty" yaml:"force,omitempty"`

	// ConnectTimeout bounds how long a sender keeps retrying. Unset means
	// retry until the context is done.
	ConnectTimeout *docfmt.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`

	// MaxFrameSize is the largest payload in bytes either side accepts.
	// Zero means DefaultMaxFrameSize.
	MaxFrameSize int64 `json:"max_frame_size,omitempty" yaml:"max_frame_size,omitempty"`
}

// Validate reports whether the configuration is usable.
func (c *Config) Validate() error {
	if c.Path == "" {
		return ErrNoPath
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("unix exchange: max_frame_size must not be negative, got %d", c.MaxFrameSize)
	}
	return nil
}

func (c *Config) maxFrameSize() uint64 {
	if c.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return uint64(c.MaxFrameSize)
}

// BuildSender connects to the socket, retrying every 100ms while the socket
// file is missing or refuses connections.
func (c *Config) BuildSender(ctx context.Context) (*Sender, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	var deadline time.Time
	if c.ConnectTimeout != nil {
		deadline = time.Now().Add(c.ConnectTimeout.Std())
	}

	var dialer net.Dialer
	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, c.Path)
		}

		conn, err := dialer.DialContext(ctx, "unix", c.Path)
		if err == nil {
			logger.Debug("connected to socket file", "path", c.Path)
			return &Sender{conn: conn, maxFrame: c.maxFrameSize()}, nil
		}
		if !retryable(err) {
			return nil, fmt.Errorf("failed to connect to %s: %w", c.Path, err)
		}

		logger.Debug("socket file is not ready, retrying", "path", c.Path, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}

// BuildReceiver binds the socket file and starts accepting senders. ctx only
// scopes the bind and supplies the logger; the receiver runs until Close.
func (c *Config) BuildReceiver(ctx context.Context) (*Receiver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	if c.Force {
		if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to remove file %s: %w", c.Path, err)
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", c.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to create socket file at %s, you may remove this file manually: %w", c.Path, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, groupCtx := errgroup.WithContext(runCtx)

	r := &Receiver{
		path:     c.Path,
		maxFrame: c.maxFrameSize(),
		listener: ln,
		payloads: make(chan []byte, bufferSize),
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
		cancel:   cancel,
		logger:   logger,
	}

	group.Go(func() error { return r.accept(groupCtx, group) })
	group.Go(func() error {
		<-groupCtx.Done()
		r.shutdown()
		return nil
	})

	go func() {
		r.err = group.Wait()
		close(r.done)
	}()

	logger.Debug("listening on socket file", "path", c.Path)
	return r, nil
}

// Sender writes framed payloads to a connected socket.
type Sender struct {
	mu       sync.Mutex
	conn     net.Conn
	maxFrame uint64
	closed   bool
}

// Send writes one frame. The context deadline, if any, bounds the write.
func (s *Sender) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if uint64(len(payload)) > s.maxFrame {
		return fmt.Errorf("%w: payload of %d bytes exceeds limit of %d", ErrFrameTooLarge, len(payload), s.maxFrame)
	}

	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(payload)))
	frame := net.Buffers{header[:], payload}
	if _, err := frame.WriteTo(s.conn); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// Receiver yields frames from every connected sender. At most two decoded
// payloads are buffered ahead of Recv.
type Receiver struct {
	path     string
	maxFrame uint64
	listener net.Listener
	payloads chan []byte
	done     chan struct{}
	err      error
	cancel   context.CancelFunc
	logger   *slog.Logger

	mu        sync.Mutex
	conns     map[net.Conn]struct{}
	closing   bool
	closeOnce sync.Once
}

func (r *Receiver) accept(ctx context.Context, group *errgroup.Group) error {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		if !r.track(conn) {
			conn.Close()
			return nil
		}
		group.Go(func() error {
			defer r.untrack(conn)
			return r.handle(ctx, conn)
		})
	}
}

func (r *Receiver) handle(ctx context.Context, conn net.Conn) error {
	var header [headerSize]byte
	for {
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.ErrUnexpectedEOF):
				return fmt.Errorf("truncated frame header: %w", err)
			default:
				return fmt.Errorf("failed to read frame header: %w", err)
			}
		}

		size := binary.LittleEndian.Uint64(header[:])
		if size > r.maxFrame {
			return fmt.Errorf("%w: frame of %d bytes exceeds limit of %d", ErrFrameTooLarge, size, r.maxFrame)
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(conn, payload); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read frame payload: %w", err)
		}

		select {
		case r.payloads <- payload:
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Receiver) track(conn net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return false
	}
	r.conns[conn] = struct{}{}
	return true
}

func (r *Receiver) untrack(conn net.Conn) {
	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()
	conn.Close()
}

// shutdown closes the listener and every open connection so that blocked
// reads return.
func (r *Receiver) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closing = true
	r.listener.Close()
	for conn := range r.conns {
		conn.Close()
	}
}

// Recv returns the next payload. Once the receiver stops it returns the
// error that stopped it, or io.EOF after Close.
func (r *Receiver) Recv(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-r.payloads:
		return payload, nil
	default:
	}

	select {
	case payload := <-r.payloads:
		return payload, nil
	case <-r.done:
		select {
		case payload := <-r.payloads:
			return payload, nil
		default:
		}
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting, disconnects senders and removes the socket file.
func (r *Receiver) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.done

		if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Error("unable to remove socket file", "path", r.path, "error", err)
		}
	})
	return nil
}
