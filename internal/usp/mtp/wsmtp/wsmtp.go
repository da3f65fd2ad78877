// Package wsmtp implements the MTP-WebSocket transport (TR-369 §10.2): a
// long-lived WSS client connecting out to the Controller.
package wsmtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/optimacs/usp-agent/internal/usp/endpoint"
	"github.com/optimacs/usp-agent/internal/usp/engine"
	"github.com/optimacs/usp-agent/internal/usp/message"
	"github.com/optimacs/usp-agent/internal/usp/record"
)

const subprotocol = "v1.usp"

// Client runs one Agent-side WebSocket MTP connection, reconnecting on
// every error or clean close.
type Client struct {
	URL           string
	AgentID       endpoint.ID
	ControllerID  endpoint.ID
	TLSConfig     *tls.Config
	Engine        *engine.Engine
	Log           zerolog.Logger
	ReconnectWait time.Duration

	connMu sync.Mutex
	conn   *websocket.Conn
}

func New(url string, agentID, controllerID endpoint.ID, tlsCfg *tls.Config, eng *engine.Engine, log zerolog.Logger) *Client {
	return &Client{
		URL:           url,
		AgentID:       agentID,
		ControllerID:  controllerID,
		TLSConfig:     tlsCfg,
		Engine:        eng,
		Log:           log.With().Str("mtp", "websocket").Logger(),
		ReconnectWait: 10 * time.Second,
	}
}

// Run serves the connect-reconnect loop until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.Log.Info().Str("url", c.URL).Msg("connecting")
		if err := c.connectAndServe(ctx); err != nil {
			c.Log.Error().Err(err).Msg("connection error")
		} else {
			c.Log.Info().Msg("disconnected gracefully")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.ReconnectWait):
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	dialer := websocket.Dialer{
		TLSClientConfig:  c.TLSConfig,
		HandshakeTimeout: 15 * time.Second,
	}
	header := http.Header{}
	header.Set("Sec-WebSocket-Protocol", subprotocol)

	conn, resp, err := dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		return fmt.Errorf("wsmtp: dial: %w", err)
	}
	defer conn.Close()
	c.setConn(conn)
	defer c.setConn(nil)

	echoed := false
	if resp != nil {
		for _, p := range strings.Split(resp.Header.Get("Sec-WebSocket-Protocol"), ",") {
			if strings.TrimSpace(p) == subprotocol {
				echoed = true
				break
			}
		}
	}
	if !echoed {
		c.Log.Warn().Msg("server did not echo Sec-WebSocket-Protocol: v1.usp")
	}
	c.Log.Info().Str("url", c.URL).Msg("connected")

	if err := c.sendConnectRecord(conn); err != nil {
		return err
	}
	if err := c.sendGetSupportedProto(conn); err != nil {
		return err
	}

	conn.SetPongHandler(func(string) error { return nil })

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("wsmtp: read: %w", err)
		}
		switch msgType {
		case websocket.BinaryMessage:
			c.handleFrame(ctx, conn, data)
		case websocket.CloseMessage:
			return nil
		case websocket.PingMessage:
			if err := conn.WriteMessage(websocket.PongMessage, data); err != nil {
				return fmt.Errorf("wsmtp: pong: %w", err)
			}
		default:
			// ignore text frames and anything else
		}
	}
}

func (c *Client) sendConnectRecord(conn *websocket.Conn) error {
	rec := record.WebsocketConnectRecord(c.AgentID, c.ControllerID)
	enc, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("wsmtp: encode connect record: %w", err)
	}
	return conn.WriteMessage(websocket.BinaryMessage, enc)
}

func (c *Client) sendGetSupportedProto(conn *websocket.Conn) error {
	msg := message.BuildGetSupportedProto()
	msgBytes, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("wsmtp: encode get_supported_proto: %w", err)
	}
	rec := record.NoSessionRecord(c.AgentID, c.ControllerID, msgBytes, "1.3")
	enc, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("wsmtp: encode get_supported_proto record: %w", err)
	}
	return conn.WriteMessage(websocket.BinaryMessage, enc)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}

// Name identifies this MTP for the supervisor's health/status reporting.
func (c *Client) Name() string { return "websocket" }

// SendNotify pushes an unsolicited outbound USP message (a status-heartbeat
// ValueChange Notify, typically) over the currently connected session. It
// returns an error if no WebSocket connection is up right now; the caller
// decides whether to drop the notify or hold it for the next tick.
func (c *Client) SendNotify(msgBytes []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("wsmtp: not connected")
	}
	rec := record.NoSessionRecord(c.AgentID, c.ControllerID, msgBytes, c.Engine.Version.Get())
	enc, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("wsmtp: encode notify record: %w", err)
	}
	return conn.WriteMessage(websocket.BinaryMessage, enc)
}

func (c *Client) handleFrame(ctx context.Context, conn *websocket.Conn, data []byte) {
	rec, err := record.Decode(data)
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
	if err := conn.WriteMessage(websocket.BinaryMessage, enc); err != nil {
		c.Log.Error().Err(err).Msg("failed to write response frame")
	}
}
