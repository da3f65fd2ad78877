// Package mqttmtp implements the MTP-MQTT transport (TR-369 §10.4): the
// Agent connects to a broker, subscribes to its own inbox topic, and
// exchanges Records as publish payloads with the Controller's inbox.
package mqttmtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/optimacs/usp-agent/internal/usp/endpoint"
	"github.com/optimacs/usp-agent/internal/usp/engine"
	"github.com/optimacs/usp-agent/internal/usp/record"
)

const (
	maxPacketSize = 4 * 1024 * 1024
	keepAlive     = 60 * time.Second
)

// Client runs one Agent-side MQTT MTP connection, reconnecting on error.
type Client struct {
	BrokerURL     string
	AgentID       endpoint.ID
	ControllerID  endpoint.ID
	TLSConfig     *tls.Config
	Engine        *engine.Engine
	Log           zerolog.Logger
	ReconnectWait time.Duration

	connMu           sync.Mutex
	activeClient     mqtt.Client
	activeCtrlTopic  string
}

func New(brokerURL string, agentID, controllerID endpoint.ID, tlsCfg *tls.Config, eng *engine.Engine, log zerolog.Logger) *Client {
	return &Client{
		BrokerURL:     brokerURL,
		AgentID:       agentID,
		ControllerID:  controllerID,
		TLSConfig:     tlsCfg,
		Engine:        eng,
		Log:           log.With().Str("mtp", "mqtt").Logger(),
		ReconnectWait: 10 * time.Second,
	}
}

// sanitiseTopic percent-encodes MQTT's reserved topic characters.
func sanitiseTopic(s string) string {
	s = strings.ReplaceAll(s, ":", "%3A")
	s = strings.ReplaceAll(s, "#", "%23")
	s = strings.ReplaceAll(s, "+", "%2B")
	return s
}

// Run serves the connect-reconnect loop until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.Log.Info().Str("broker", c.BrokerURL).Msg("connecting")
		if err := c.connectAndServe(ctx); err != nil {
			c.Log.Error().Err(err).Msg("connection error")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.ReconnectWait):
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	agentTopic := fmt.Sprintf("usp/v1/agent/%s", sanitiseTopic(c.AgentID.String()))
	controllerTopic := fmt.Sprintf("usp/v1/controller/%s", sanitiseTopic(c.ControllerID.String()))

	opts := mqtt.NewClientOptions().
		AddBroker(c.BrokerURL).
		SetClientID(sanitiseTopic(c.AgentID.String())).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(false).
		SetConnectTimeout(15 * time.Second)
	if c.TLSConfig != nil {
		opts.SetTLSConfig(c.TLSConfig)
	}

	connErr := make(chan error, 1)
	opts.SetOnConnectHandler(func(mqtt.Client) { connErr <- nil })
	lost := make(chan error, 1)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.Log.Warn().Err(err).Msg("connection lost")
		select {
		case lost <- err:
		default:
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(15 * time.Second); !ok {
		return fmt.Errorf("mqttmtp: connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttmtp: connect: %w", err)
	}
	defer client.Disconnect(250)

	subDone := make(chan error, 1)
	subToken := client.Subscribe(agentTopic, 1, func(_ mqtt.Client, m mqtt.Message) {
		c.handlePublish(ctx, client, controllerTopic, m.Payload())
	})
	subToken.Wait()
	if err := subToken.Error(); err != nil {
		return fmt.Errorf("mqttmtp: subscribe: %w", err)
	}
	close(subDone)

	if err := c.publishConnectRecord(client, agentTopic, controllerTopic); err != nil {
		return err
	}
	c.Log.Info().Str("topic", agentTopic).Msg("connected and subscribed")

	c.setActive(client, controllerTopic)
	defer c.setActive(nil, "")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-lost:
		return fmt.Errorf("mqttmtp: connection lost: %w", err)
	}
}

func (c *Client) setActive(client mqtt.Client, controllerTopic string) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.activeClient = client
	c.activeCtrlTopic = controllerTopic
}

// Name identifies this MTP for the supervisor's health/status reporting.
func (c *Client) Name() string { return "mqtt" }

// SendNotify publishes an unsolicited outbound USP message (a
// status-heartbeat ValueChange Notify, typically) to the Controller's
// inbox topic. It returns an error if no broker session is up right now;
// the caller decides whether to drop the notify or hold it for the next
// tick.
func (c *Client) SendNotify(msgBytes []byte) error {
	c.connMu.Lock()
	client, topic := c.activeClient, c.activeCtrlTopic
	c.connMu.Unlock()
	if client == nil {
		return fmt.Errorf("mqttmtp: not connected")
	}
	rec := record.NoSessionRecord(c.AgentID, c.ControllerID, msgBytes, c.Engine.Version.Get())
	enc, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("mqttmtp: encode notify record: %w", err)
	}
	token := client.Publish(topic, 1, false, enc)
	token.Wait()
	return token.Error()
}

func (c *Client) publishConnectRecord(client mqtt.Client, agentTopic, controllerTopic string) error {
	rec := record.MqttConnectRecord(c.AgentID, c.ControllerID, 0, agentTopic) // 0 = V3_1_1
	enc, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("mqttmtp: encode connect record: %w", err)
	}
	token := client.Publish(controllerTopic, 1, false, enc)
	token.Wait()
	return token.Error()
}

func (c *Client) handlePublish(ctx context.Context, client mqtt.Client, controllerTopic string, payload []byte) {
	rec, err := record.Decode(payload)
	if err != nil {
		c.Log.Warn().Err(err).Msg("bad record")
		return
	}
	if !rec.ToID.Empty() && rec.ToID != c.AgentID {
		c.Log.Warn().Str("to_id", rec.ToID.String()).Msg("to_id mismatch, discarding")
		return
	}
	msgBytes, ok := record.ExtractMsgPayload(rec)
	if !ok {
		return
	}
	respBytes, send := c.Engine.HandleIncoming(ctx, msgBytes)
	if !send {
		return
	}
	respRec := record.NoSessionRecord(c.AgentID, rec.FromID, respBytes, c.Engine.Version.Get())
	enc, err := record.Encode(respRec)
	if err != nil {
		c.Log.Error().Err(err).Msg("failed to encode response record")
		return
	}
	client.Publish(controllerTopic, 1, false, enc)
}
