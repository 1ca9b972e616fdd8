// Package connector owns the connection lifecycle to the hook event stream.
// It produces an unbounded sequence of raw payloads and reports connection
// state transitions. Retry policy lives with the caller, never here.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hooktail-systems/hooktail/internal/logging"
	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/pkg/messaging"
	natsmsg "github.com/hooktail-systems/hooktail/pkg/messaging/nats"
)

// State is the connector lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// StateChange is published on every transition. Err carries the transport
// fault for transitions into StateDisconnected, nil otherwise.
type StateChange struct {
	State State
	Err   error
}

var (
	// ErrNotConnected is returned when Subscribe is called before Connect.
	ErrNotConnected = errors.New("connector: not connected")

	// ErrAlreadySubscribed is returned on a second Subscribe without an
	// intervening disconnect; the live sequence is not restartable.
	ErrAlreadySubscribed = errors.New("connector: already subscribed")
)

// Config holds connector settings.
type Config struct {
	// URL is the broker URL.
	URL string

	// Name identifies this client on the broker.
	Name string

	// Subject is the subject hook events are published on.
	Subject string

	// ConnectTimeout bounds the transport handshake.
	ConnectTimeout time.Duration

	// Buffer is the capacity of the event channel; bursts park here
	// instead of blocking the transport dispatcher.
	Buffer int
}

// DialFunc opens a transport connection. onClosed is invoked once if the
// connection is lost; injectable so tests can supply a fake client.
type DialFunc func(cfg Config, onClosed func(error)) (messaging.Client, error)

func natsDial(cfg Config, onClosed func(error)) (messaging.Client, error) {
	return natsmsg.NewClient(natsmsg.Config{
		URL:      cfg.URL,
		Name:     cfg.Name,
		Timeout:  cfg.ConnectTimeout,
		OnClosed: onClosed,
	})
}

// Connector manages one live transport connection at a time.
type Connector struct {
	cfg  Config
	dial DialFunc
	log  *logging.Logger

	mu      sync.Mutex
	client  messaging.Client
	sub     messaging.Subscription
	state   State
	lastErr error

	// per-subscription plumbing, rebuilt on every Subscribe
	inbox chan models.RawEventPayload
	done  chan struct{}
	stop  *sync.Once

	states chan StateChange
}

// New creates a Connector that dials NATS.
func New(cfg Config, log *logging.Logger) *Connector {
	return NewWithDialer(cfg, natsDial, log)
}

// NewWithDialer creates a Connector with a custom transport dialer.
func NewWithDialer(cfg Config, dial DialFunc, log *logging.Logger) *Connector {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if log == nil {
		log = logging.Default()
	}
	return &Connector{
		cfg:    cfg,
		dial:   dial,
		log:    log,
		state:  StateDisconnected,
		states: make(chan StateChange, 16),
	}
}

// Connect establishes the transport connection. It is idempotent when
// already connected. A failed or timed-out handshake leaves the connector
// disconnected and returns the error; it is not retried here.
func (c *Connector) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state >= StateConnected && c.client != nil && c.client.IsConnected() {
		return nil
	}

	c.lastErr = nil
	c.setState(StateConnecting, nil)

	client, err := c.dial(c.cfg, c.handleClosed)
	if err != nil {
		c.lastErr = err
		c.setState(StateDisconnected, err)
		return fmt.Errorf("connector: connect: %w", err)
	}

	c.client = client
	c.setState(StateConnected, nil)
	c.log.Info("stream connected", logging.Subject(c.cfg.Subject))
	return nil
}

// Subscribe starts the live sequence of raw payloads. The returned channel
// is unbounded in duration: it closes only when the transport fails or
// Disconnect is called, and a fresh subscription requires a new Connect.
func (c *Connector) Subscribe() (<-chan models.RawEventPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSubscribed:
		return nil, ErrAlreadySubscribed
	case StateConnected:
	default:
		return nil, ErrNotConnected
	}

	inbox := make(chan models.RawEventPayload)
	events := make(chan models.RawEventPayload, c.cfg.Buffer)
	done := make(chan struct{})
	c.inbox = inbox
	c.done = done
	c.stop = &sync.Once{}

	sub, err := c.client.Subscribe(c.cfg.Subject, func(_ context.Context, msg *messaging.Message) error {
		var raw models.RawEventPayload
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			c.log.Warn("dropping malformed payload", logging.Subject(msg.Subject), logging.Error(err))
			return err
		}
		select {
		case inbox <- raw:
		case <-done:
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connector: subscribe %s: %w", c.cfg.Subject, err)
	}
	c.sub = sub

	// The pump is the sole closer of the events channel, so handler
	// sends never race a close.
	go func() {
		defer close(events)
		for {
			select {
			case raw := <-inbox:
				select {
				case events <- raw:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	c.setState(StateSubscribed, nil)
	return events, nil
}

// Disconnect terminates the live sequence promptly and releases the
// transport resource. In-flight downstream work is unaffected.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown(nil)
}

// IsConnected reports whether a live transport connection is held.
func (c *Connector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state >= StateConnected && c.client != nil && c.client.IsConnected()
}

// State returns the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent connect or transport fault, nil when
// the last transition was deliberate. Connect clears it.
func (c *Connector) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// States returns the state transition channel. Transitions are dropped,
// not blocked on, when the subscriber lags.
func (c *Connector) States() <-chan StateChange {
	return c.states
}

// handleClosed runs when the transport reports a permanent connection loss.
func (c *Connector) handleClosed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return
	}
	if err != nil {
		c.log.Error("stream connection lost", logging.Error(err))
	}
	c.teardown(err)
}

// teardown releases everything and transitions to disconnected.
// Caller must hold c.mu.
func (c *Connector) teardown(err error) {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
	if c.stop != nil {
		done := c.done
		c.stop.Do(func() { close(done) })
		c.stop = nil
	}
	if c.client != nil {
		_ = c.client.Drain()
		_ = c.client.Close()
		c.client = nil
	}
	if err != nil {
		c.lastErr = err
	}
	if c.state != StateDisconnected || err != nil {
		c.setState(StateDisconnected, err)
	}
}

// setState records and publishes a transition. Caller must hold c.mu.
func (c *Connector) setState(state State, err error) {
	c.state = state
	select {
	case c.states <- StateChange{State: state, Err: err}:
	default:
	}
}
