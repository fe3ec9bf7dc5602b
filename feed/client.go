package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"coinview/config"
	"coinview/logger"
	"coinview/models"
)

// State is the connection lifecycle state of a feed client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}

const writeTimeout = time.Second

// Client maintains one logical ticker subscription to the market data feed.
// Reconnects are hidden behind two signals: the connection state and the
// stream of decoded ticks. The desired subscription set is replayed on every
// successful connection.
type Client struct {
	cfg    config.FeedConfig
	dialer *websocket.Dialer
	sched  *Scheduler

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	wg      *sync.WaitGroup

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	state atomic.Int32

	subMu   sync.RWMutex
	desired map[string]struct{}

	connected *StateSignal
	ticks     *TickSignal
	log       *logger.Log
}

// NewClient creates a feed client for the configured endpoint.
func NewClient(cfg config.FeedConfig) *Client {
	return NewClientWithClock(cfg, nil)
}

// NewClientWithClock creates a feed client whose timers run on the provided
// clock. A nil clock uses the real one.
func NewClientWithClock(cfg config.FeedConfig, clock Clock) *Client {
	return &Client{
		cfg:       cfg,
		dialer:    websocket.DefaultDialer,
		sched:     NewScheduler(clock),
		wg:        &sync.WaitGroup{},
		desired:   make(map[string]struct{}),
		connected: NewStateSignal(false),
		ticks:     NewTickSignal(),
		log:       logger.GetLogger(),
	}
}

// Start launches the connection loop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("feed client already running")
	}
	c.running = true
	c.ctx = ctx
	c.mu.Unlock()

	log := c.log.WithComponent("feed_client").WithFields(logger.Fields{"url": c.cfg.URL})
	log.Info("starting feed client")

	c.wg.Add(1)
	go c.run()

	return nil
}

// Stop tears down the current connection and waits for the connection loop
// to exit. The context passed to Start should be cancelled first.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	if conn := c.currentConn(); conn != nil {
		_ = conn.Close()
	}

	c.log.WithComponent("feed_client").Info("stopping feed client")
	c.wg.Wait()
	c.log.WithComponent("feed_client").Info("feed client stopped")
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connected reports whether the connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Current()
}

// ConnectionStates returns a latest-value channel of connection state
// changes. The current state is delivered immediately.
func (c *Client) ConnectionStates() <-chan bool {
	return c.connected.Subscribe()
}

// Ticks returns a latest-value channel of decoded ticker events.
func (c *Client) Ticks() <-chan Ticker {
	return c.ticks.Subscribe()
}

// Subscribe records the desired ticker set and, when the connection is open,
// sends the subscribe request. BTC-EUR and BTC-USD are always included so
// the EUR-USD cross rate can be derived. The recorded set is replayed on
// every reconnect without the caller re-issuing the call.
func (c *Client) Subscribe(tickers []string) error {
	c.subMu.Lock()
	for _, ticker := range tickers {
		if ticker != "" {
			c.desired[ticker] = struct{}{}
		}
	}
	c.desired[models.ProductBTCEUR] = struct{}{}
	c.desired[models.ProductBTCUSD] = struct{}{}
	productIDs := c.desiredLocked()
	c.subMu.Unlock()

	if c.State() != StateOpen {
		return nil
	}
	return c.sendSubscribe(productIDs)
}

// Unsubscribe sends an unsubscribe-all for the current session. The desired
// set is intentionally retained, so a later reconnect resubscribes.
func (c *Client) Unsubscribe() error {
	if c.State() != StateOpen {
		return nil
	}
	return c.writeJSON(newUnsubscribeRequest())
}

// DesiredSubscriptions returns the recorded ticker set, sorted.
func (c *Client) DesiredSubscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.desiredLocked()
}

func (c *Client) desiredLocked() []string {
	ids := make([]string, 0, len(c.desired))
	for id := range c.desired {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Client) isRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

// run is the connection loop: dial, serve the session until it dies, wait
// the reconnect delay, repeat. Failures are never fatal; the client degrades
// to disconnected and keeps retrying.
func (c *Client) run() {
	defer c.wg.Done()

	log := c.log.WithComponent("feed_client").WithFields(logger.Fields{"worker": "connection_loop"})

	for {
		if c.ctx.Err() != nil || !c.isRunning() {
			return
		}

		c.state.Store(int32(StateConnecting))
		conn, _, err := c.dialer.DialContext(c.ctx, c.cfg.URL, nil)
		if err != nil {
			c.state.Store(int32(StateDisconnected))
			log.WithError(err).Warn("failed to connect to feed, retrying")
			logger.IncrementReconnect()
			select {
			case <-time.After(c.cfg.ReconnectDelay):
				continue
			case <-c.ctx.Done():
				return
			}
		}

		c.session(conn, log)

		if c.ctx.Err() != nil || !c.isRunning() {
			return
		}
		logger.IncrementReconnect()
		select {
		case <-time.After(c.cfg.ReconnectDelay):
		case <-c.ctx.Done():
			return
		}
	}
}

// session serves one open connection until it dies for any reason: transport
// error, liveness timeout, or activity timeout.
func (c *Client) session(conn *websocket.Conn, log *logger.Entry) {
	c.setConn(conn)
	c.state.Store(int32(StateOpen))

	conn.SetPongHandler(func(string) error {
		c.sched.Disarm(timerLiveness)
		return nil
	})

	c.subMu.RLock()
	productIDs := c.desiredLocked()
	c.subMu.RUnlock()
	if len(productIDs) > 0 {
		if err := c.sendSubscribe(productIDs); err != nil {
			log.WithError(err).Warn("failed to replay subscription")
		}
	}

	c.armHeartbeat(conn)
	c.armActivity(conn, log)

	c.connected.publish(true)
	log.Info("feed connected")

	for {
		if c.ctx.Err() != nil {
			break
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Warn("feed connection lost")
			break
		}

		// Any frame counts as activity, acknowledgments included.
		c.armActivity(conn, log)
		c.handleFrame(data, log)
	}

	c.sched.DisarmAll()
	_ = conn.Close()
	c.setConn(nil)
	c.state.Store(int32(StateDisconnected))
	c.connected.publish(false)
	log.Info("feed disconnected")
}

// armHeartbeat schedules the next liveness probe. Each probe sends a ping,
// arms the liveness timeout, and reschedules itself. The pong handler
// disarms the timeout; if it fires instead, the connection is torn down even
// though the transport still claims to be connected.
func (c *Client) armHeartbeat(conn *websocket.Conn) {
	c.sched.Arm(timerHeartbeat, c.cfg.HeartbeatInterval, func() {
		if c.currentConn() != conn {
			return
		}

		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
			c.log.WithComponent("feed_client").WithError(err).Warn("failed to send liveness probe")
			_ = conn.Close()
			return
		}

		c.sched.Arm(timerLiveness, c.cfg.LivenessTimeout, func() {
			if c.currentConn() != conn {
				return
			}
			c.log.WithComponent("feed_client").Warn("liveness probe unacknowledged, forcing reconnect")
			_ = conn.Close()
		})

		c.armHeartbeat(conn)
	})
}

// armActivity re-arms the inactivity timer. A connection that stops
// delivering frames without erroring is closed here and recovered through
// the normal reconnect path.
func (c *Client) armActivity(conn *websocket.Conn, log *logger.Entry) {
	c.sched.Arm(timerActivity, c.cfg.ActivityTimeout, func() {
		if c.currentConn() != conn {
			return
		}
		log.Warn("no frames within activity window, closing connection")
		_ = conn.Close()
	})
}

func (c *Client) handleFrame(data []byte, log *logger.Entry) {
	decoded := DecodeFrame(data)
	switch decoded.Outcome {
	case OutcomeTicker:
		logger.IncrementTickRead(len(data))
		c.ticks.publish(decoded.Ticker)
	case OutcomeSubscriptions:
		if len(decoded.Subscriptions) > 0 {
			log.WithFields(logger.Fields{"channels": decoded.Subscriptions}).Debug("feed subscriptions acknowledged")
		} else {
			log.Debug("feed unsubscribed")
		}
	default:
		logger.IncrementDecodeDrop()
		log.Debug("dropping unrecognised feed frame")
	}
}

func (c *Client) sendSubscribe(productIDs []string) error {
	return c.writeJSON(newSubscribeRequest(productIDs))
}

func (c *Client) writeJSON(v interface{}) error {
	conn := c.currentConn()
	if conn == nil {
		return fmt.Errorf("feed connection not open")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}
