package mpv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrConnect marks dial failures: socket absent or connection refused.
	ErrConnect = errors.New("player connect failed")
	// ErrTimeout marks a per-attempt deadline expiring mid-exchange.
	ErrTimeout = errors.New("player timed out")
	// ErrMalformedReply marks replies that could not be parsed.
	ErrMalformedReply = errors.New("malformed player reply")
	// ErrPlayerError marks replies the player answered with a non-success status.
	ErrPlayerError = errors.New("player rejected command")

	errNotAReply = errors.New("line is an event, not a reply")
)

// Channel sends commands to player IPC endpoints. Every call opens a fresh
// connection; the player accepts this pattern and it keeps the channel free
// of per-slot connection state. Transient faults are retried here with a
// fixed delay and never surfaced past the channel unless retries are
// exhausted, so one unresponsive slot can stall a caller for at most
// retries x (timeout + delay).
type Channel struct {
	timeout    time.Duration
	retries    int
	retryDelay time.Duration

	dial func(ctx context.Context, path string) (net.Conn, error)
}

// NewChannel constructs a channel with the given per-attempt timeout, retry
// cap, and fixed inter-attempt delay.
func NewChannel(timeout time.Duration, retries int, retryDelay time.Duration) *Channel {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if retries < 1 {
		retries = 1
	}
	if retryDelay < 0 {
		retryDelay = 0
	}
	return &Channel{
		timeout:    timeout,
		retries:    retries,
		retryDelay: retryDelay,
		dial:       dialUnix,
	}
}

func dialUnix(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}

// Send writes the command without waiting for a reply.
func (c *Channel) Send(ctx context.Context, socketPath string, cmd Command) error {
	_, err := c.exchange(ctx, socketPath, cmd, false)
	return err
}

// Query writes the command and reads one reply line, parsing it into a Result.
func (c *Channel) Query(ctx context.Context, socketPath string, cmd Command) (Result, error) {
	return c.exchange(ctx, socketPath, cmd, true)
}

func (c *Channel) exchange(ctx context.Context, socketPath string, cmd Command, wantReply bool) (Result, error) {
	payload, err := cmd.encode()
	if err != nil {
		return Result{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		result, err := c.attempt(ctx, socketPath, payload, wantReply)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
	}
	return Result{}, fmt.Errorf("command %s to %s after %d attempts: %w", cmd, socketPath, c.retries, lastErr)
}

func (c *Channel) attempt(ctx context.Context, socketPath string, payload []byte, wantReply bool) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(attemptCtx, socketPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return Result{}, fmt.Errorf("%w: set deadline: %v", ErrConnect, err)
	}

	if _, err := conn.Write(payload); err != nil {
		return Result{}, classifyIOError(err)
	}

	if !wantReply {
		return Result{}, nil
	}

	// The player emits async event lines on the same socket; skip them until
	// a real reply arrives or the deadline hits.
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		result, err := parseResponse(scanner.Bytes())
		if errors.Is(err, errNotAReply) {
			continue
		}
		return result, err
	}
	if err := scanner.Err(); err != nil {
		return Result{}, classifyIOError(err)
	}
	return Result{}, fmt.Errorf("%w: connection closed before reply", ErrMalformedReply)
}

func classifyIOError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnect, err)
}
