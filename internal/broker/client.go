package broker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"attendboard/internal/feed"
	"attendboard/internal/metrics"
)

// ConnState is the broker connection lifecycle state.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config describes the broker endpoint and the fixed subscription.
type Config struct {
	Host           string
	Port           int
	Topic          string
	ClientID       string
	Keepalive      time.Duration
	ConnectTimeout time.Duration
}

// Client manages one connection to the publish/subscribe broker. Decoded
// messages are handed to the feed queue; the client never touches the
// buffer directly. Setup is idempotent, so only one underlying session
// exists per process.
type Client struct {
	cfg   Config
	queue feed.Queue
	now   func() time.Time

	mu      sync.Mutex
	state   ConnState
	lastErr string
	mqtt    paho.Client
}

// New creates an unconnected client publishing decoded events into q.
func New(cfg Config, q feed.Queue) *Client {
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = 60 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Client{cfg: cfg, queue: q, now: time.Now}
}

// Setup connects to the broker and subscribes to the configured topic.
// Calling it again once a session exists is a no-op. A failed connect
// leaves the client disconnected with the reason recorded; there is no
// automatic retry.
func (c *Client) Setup() error {
	c.mu.Lock()
	if c.mqtt != nil {
		c.mu.Unlock()
		return nil
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", c.cfg.Host, c.cfg.Port)).
		SetClientID(c.cfg.ClientID).
		SetCleanSession(true).
		SetKeepAlive(c.cfg.Keepalive).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	client := paho.NewClient(opts)
	c.mqtt = client
	c.state = Connecting
	c.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) || token.Error() != nil {
		reason := "connect timeout"
		if err := token.Error(); err != nil {
			reason = err.Error()
		}
		c.setDisconnected(reason)
		return fmt.Errorf("broker connect %s:%d: %s", c.cfg.Host, c.cfg.Port, reason)
	}
	return nil
}

func (c *Client) onConnect(client paho.Client) {
	token := client.Subscribe(c.cfg.Topic, 0, c.handleMessage)
	if !token.WaitTimeout(c.cfg.ConnectTimeout) || token.Error() != nil {
		reason := "subscribe timeout"
		if err := token.Error(); err != nil {
			reason = err.Error()
		}
		log.Printf("[broker] subscribe %s failed: %s", c.cfg.Topic, reason)
		c.setDisconnected(reason)
		client.Disconnect(0)
		return
	}
	c.setConnected()
	log.Printf("[broker] connected, subscribed to %s", c.cfg.Topic)
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	reason := "connection lost"
	if err != nil {
		reason = err.Error()
	}
	c.setDisconnected(reason)
	log.Printf("[broker] disconnected: %s", reason)
}

func (c *Client) handleMessage(_ paho.Client, msg paho.Message) {
	c.Ingest(msg.Payload())
}

// Ingest decodes one payload and pushes it into the feed queue. Malformed
// payloads are dropped with a warning; the listener keeps running.
func (c *Client) Ingest(payload []byte) {
	evt, err := feed.Decode(payload)
	if err != nil {
		metrics.DecodeFailures.Inc()
		log.Printf("[broker] dropping undecodable message: %v", err)
		return
	}
	evt.StampReceived(c.now())
	metrics.EventsReceived.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.queue.Publish(ctx, evt); err != nil {
		metrics.EventsDropped.Inc()
		log.Printf("[broker] event dropped: %v", err)
	}
}

// State reports the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent disconnect or connect-failure reason.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close disconnects from the broker, waiting briefly for in-flight work.
func (c *Client) Close() {
	c.mu.Lock()
	client := c.mqtt
	c.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
	c.setDisconnected("closed")
}

func (c *Client) setConnected() {
	c.mu.Lock()
	c.state = Connected
	c.lastErr = ""
	c.mu.Unlock()
	metrics.BrokerConnected.Set(1)
}

func (c *Client) setDisconnected(reason string) {
	c.mu.Lock()
	c.state = Disconnected
	c.lastErr = reason
	c.mu.Unlock()
	metrics.BrokerConnected.Set(0)
}
