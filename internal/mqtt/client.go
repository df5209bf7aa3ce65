// Package mqtt bridges the remote to an MQTT broker: key presses and power
// changes arrive on command topics, connection state is published on a
// status topic.
//
// Topics, with the default prefix "e2remote":
//
//	e2remote/command/key    payload "volup" or {"name":"volup"}
//	e2remote/command/power  payload "standby" or {"name":"standby"}
//	e2remote/status         retained JSON Status
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/session"
)

// DefaultPrefix is the topic prefix used when Config.Prefix is empty.
const DefaultPrefix = "e2remote"

// Config holds MQTT configuration
type Config struct {
	Broker   string
	Port     int
	Username string
	Password string
	ClientID string
	Prefix   string
}

func (c Config) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return strings.TrimSuffix(c.Prefix, "/")
}

// CommandKind says what a Command asks for.
type CommandKind string

const (
	CommandKey   CommandKind = "key"
	CommandPower CommandKind = "power"
)

// Command is a request received from the broker.
type Command struct {
	Kind CommandKind
	Name string
}

// Status is published whenever the connection state changes.
type Status struct {
	Address   string    `json:"address"`
	Status    string    `json:"status"`
	Connected bool      `json:"connected"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusFrom converts a session snapshot.
func StatusFrom(s session.State, at time.Time) Status {
	return Status{
		Address:   s.Address,
		Status:    s.Status(),
		Connected: s.Connected,
		Reason:    s.Reason(),
		Timestamp: at,
	}
}

// Dispatcher executes commands. *session.Session implements it.
type Dispatcher interface {
	SendKey(ctx context.Context, name string) error
	SendPowerState(ctx context.Context, state openwebif.PowerState) error
}

// Client wraps MQTT client functionality
type Client struct {
	client      paho.Client
	config      Config
	dispatcher  Dispatcher
	commandChan chan Command
}

// NewClient creates a new MQTT client
func NewClient(config Config, dispatcher Dispatcher) *Client {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", config.Broker, config.Port))
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetWill(config.prefix()+"/status", `{"status":"offline"}`, 1, true)

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logging.Warn("MQTT connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logging.Info("MQTT connected", zap.String("broker", config.Broker))
	})

	return newClient(paho.NewClient(opts), config, dispatcher)
}

func newClient(pc paho.Client, config Config, dispatcher Dispatcher) *Client {
	return &Client{
		client:      pc,
		config:      config,
		dispatcher:  dispatcher,
		commandChan: make(chan Command, 100),
	}
}

// Connect establishes connection to MQTT broker
func (c *Client) Connect() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Disconnect closes the connection to MQTT broker
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

// IsConnected checks if the client is connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// CommandTopic returns the wildcard topic commands arrive on.
func (c *Client) CommandTopic() string {
	return c.config.prefix() + "/command/+"
}

// StatusTopic returns the topic status is published on.
func (c *Client) StatusTopic() string {
	return c.config.prefix() + "/status"
}

// Run subscribes to the command topic, dispatches commands and publishes
// every state received on states until ctx is done.
func (c *Client) Run(ctx context.Context, states <-chan session.State) error {
	topic := c.CommandTopic()
	token := c.client.Subscribe(topic, 1, c.onMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to commands: %w", token.Error())
	}
	logging.Info("Subscribed to MQTT command topic", zap.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.commandChan:
			if err := c.dispatch(ctx, cmd); err != nil {
				logging.Warn("MQTT command failed",
					zap.String("kind", string(cmd.Kind)),
					zap.String("name", cmd.Name),
					zap.Error(err),
				)
			}
		case s, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if err := c.PublishStatus(StatusFrom(s, time.Now())); err != nil {
				logging.Warn("Failed to publish status", zap.Error(err))
			}
		}
	}
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	cmd, err := ParseCommand(msg.Topic(), msg.Payload())
	if err != nil {
		logging.Warn("Ignoring MQTT message", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	select {
	case c.commandChan <- cmd:
	default:
		logging.Warn("Command channel full, dropping command", zap.String("name", cmd.Name))
	}
}

func (c *Client) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandKey:
		return c.dispatcher.SendKey(ctx, cmd.Name)
	case CommandPower:
		state, err := openwebif.LookupPowerState(cmd.Name)
		if err != nil {
			return err
		}
		return c.dispatcher.SendPowerState(ctx, state)
	default:
		return fmt.Errorf("unsupported command kind %q", cmd.Kind)
	}
}

// PublishStatus publishes a retained status message.
func (c *Client) PublishStatus(status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	token := c.client.Publish(c.StatusTopic(), 1, true, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish status: %w", token.Error())
	}
	logging.Debug("Published status", zap.String("status", status.Status), zap.String("address", status.Address))
	return nil
}

// ParseCommand extracts a command from a "<prefix>/command/<kind>" topic
// and its payload, which is either the bare name or {"name": "..."}.
func ParseCommand(topic string, payload []byte) (Command, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-2] != "command" {
		return Command{}, fmt.Errorf("invalid command topic format: %s", topic)
	}

	kind := CommandKind(parts[len(parts)-1])
	if kind != CommandKey && kind != CommandPower {
		return Command{}, fmt.Errorf("unsupported command kind %q", kind)
	}

	name := strings.TrimSpace(string(payload))
	if strings.HasPrefix(name, "{") {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return Command{}, fmt.Errorf("failed to parse command payload: %w", err)
		}
		name = strings.TrimSpace(body.Name)
	}
	if name == "" {
		return Command{}, fmt.Errorf("empty %s command", kind)
	}

	return Command{Kind: kind, Name: name}, nil
}
