package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cubiclauncher/kepler/internal/infrastructure/resilience"
	"github.com/cubiclauncher/kepler/internal/presence"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single handshake or command when ctx has no deadline
	DefaultTimeout = 5 * time.Second

	// Discord accepts 5 SET_ACTIVITY commands per 20 seconds
	activityBurst    = 5
	activityInterval = 20 * time.Second / activityBurst
)

// Dialer opens a raw connection to the Discord IPC endpoint
type Dialer func(ctx context.Context) (net.Conn, error)

// Option configures a Client
type Option func(*Client)

// WithDialer replaces the platform socket/pipe dialer
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dial = d
		}
	}
}

// WithLogger sets the client logger
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTimeout sets the per-call I/O timeout used when ctx has no deadline
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit overrides the SET_ACTIVITY token bucket
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithBreakerSettings overrides the circuit breaker guarding connects and sends
func WithBreakerSettings(s resilience.Settings) Option {
	return func(c *Client) {
		c.breakerSettings = s
	}
}

// Client is a presence.Client speaking Discord's local RPC protocol.
// It connects on first use and redials after any transport error.
type Client struct {
	appID   string
	pid     int
	dial    Dialer
	timeout time.Duration
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *zap.Logger

	breakerSettings resilience.Settings

	mu     sync.Mutex
	conn   net.Conn // Protected by mu
	closed bool     // Protected by mu
}

var _ presence.Client = (*Client)(nil)

// New creates a client for the given Discord application id.
// No connection is made until the first SetActivity.
func New(appID string, opts ...Option) *Client {
	c := &Client{
		appID:   appID,
		pid:     os.Getpid(),
		dial:    dialIPC,
		timeout: DefaultTimeout,
		limiter: rate.NewLimiter(rate.Every(activityInterval), activityBurst),
		log:     zap.NewNop(),
		breakerSettings: resilience.Settings{
			FailureThreshold: 3,
			Cooldown:         30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	settings := c.breakerSettings
	// Discord answering with an error means the transport is healthy
	isFailure := settings.IsFailure
	settings.IsFailure = func(err error) bool {
		if isRemoteError(err) || errors.Is(err, ErrClosed) {
			return false
		}
		if isFailure != nil {
			return isFailure(err)
		}
		return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	settings.OnStateChange = func(name string, from, to resilience.State) {
		c.log.Info("discord circuit changed",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if c.breakerSettings.OnStateChange != nil {
			c.breakerSettings.OnStateChange(name, from, to)
		}
	}
	c.breaker = resilience.New("discord-ipc", settings)

	return c
}

// ApplicationID returns the Discord application the client identifies as
func (c *Client) ApplicationID() string {
	return c.appID
}

// Connected reports whether an IPC connection is currently open
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

// BreakerState returns the state of the connection circuit breaker
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// SetActivity replaces the activity shown on the user's Discord profile
func (c *Client) SetActivity(ctx context.Context, activity presence.Activity) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.closed {
			return ErrClosed
		}

		if err := c.connectLocked(ctx); err != nil {
			return err
		}

		err := c.commandLocked(ctx, command{
			Cmd:   "SET_ACTIVITY",
			Args:  activityArgs{PID: c.pid, Activity: activity},
			Nonce: uuid.NewString(),
		})
		if err != nil && !isRemoteError(err) {
			c.dropLocked(err)
		}
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.log.Debug("discord circuit open, update skipped",
			zap.Time("retry_at", c.breaker.RetryAt()))
	}
	return err
}

// Disconnect sends the close frame and releases the connection.
// Calling it more than once is harmless.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	conn := c.conn
	if conn == nil {
		return nil
	}
	c.conn = nil

	stop := c.bindDeadline(ctx, conn)
	writeErr := writeFrame(conn, opClose, struct{}{})
	stop()

	closeErr := conn.Close()
	c.log.Debug("discord connection closed")

	return errors.Join(writeErr, closeErr)
}

// connectLocked dials and performs the handshake if no connection is open (must hold lock)
func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	stop := c.bindDeadline(ctx, conn)
	defer stop()

	if err := writeFrame(conn, opHandshake, handshake{Version: 1, ClientID: c.appID}); err != nil {
		conn.Close()
		return err
	}

	resp, err := c.awaitLocked(conn, "")
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	if resp.Cmd != "DISPATCH" || resp.Evt != "READY" {
		conn.Close()
		return fmt.Errorf("%w: handshake answered with %s/%s", ErrUnexpectedResponse, resp.Cmd, resp.Evt)
	}

	c.conn = conn
	c.log.Info("connected to discord", zap.String("app_id", c.appID))
	return nil
}

// commandLocked sends cmd and waits for the response carrying its nonce (must hold lock)
func (c *Client) commandLocked(ctx context.Context, cmd command) error {
	stop := c.bindDeadline(ctx, c.conn)
	defer stop()

	if err := writeFrame(c.conn, opFrame, cmd); err != nil {
		return err
	}

	resp, err := c.awaitLocked(c.conn, cmd.Nonce)
	if err != nil {
		return err
	}
	if resp.Evt == "ERROR" {
		return decodeError(resp.Data)
	}
	return nil
}

// awaitLocked reads frames until a response matching nonce arrives.
// An empty nonce accepts the first frame. Pings are answered in place.
func (c *Client) awaitLocked(conn net.Conn, nonce string) (*response, error) {
	for {
		op, body, err := readFrame(conn)
		if err != nil {
			return nil, err
		}

		switch op {
		case opFrame:
			var resp response
			if err := sonic.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
			}
			if nonce != "" && resp.Nonce != nonce {
				c.log.Debug("skipping unrelated frame",
					zap.String("cmd", resp.Cmd),
					zap.String("evt", resp.Evt))
				continue
			}
			return &resp, nil
		case opPing:
			if err := writeFrame(conn, opPong, rawJSON(body)); err != nil {
				return nil, err
			}
		case opClose:
			// Discord closes with {code, message}, e.g. an unknown client id
			return nil, closedByRemote(body)
		default:
			return nil, fmt.Errorf("%w: opcode %d", ErrUnexpectedResponse, op)
		}
	}
}

// bindDeadline applies ctx's deadline (or the client timeout) to conn and
// interrupts blocked I/O when ctx is canceled. The returned func undoes both.
func (c *Client) bindDeadline(ctx context.Context, conn net.Conn) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	_ = conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		_ = conn.SetDeadline(time.Time{})
	}
}

// dropLocked closes a connection that failed mid-command (must hold lock)
func (c *Client) dropLocked(cause error) {
	if c.conn == nil {
		return
	}
	c.log.Warn("dropping discord connection", zap.Error(cause))
	_ = c.conn.Close()
	c.conn = nil
}

// rawJSON lets an already encoded body be written back unchanged
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("{}"), nil
	}
	return r, nil
}
