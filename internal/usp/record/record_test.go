package record

import (
	"bytes"
	"testing"

	"github.com/optimacs/usp-agent/internal/usp/endpoint"
)

func TestNoSessionRoundTrip(t *testing.T) {
	from := endpoint.ID("oui:00005A:AABBCCDDEEFF")
	to := endpoint.ID("oui:00005A:OptimACS-Controller-1")
	r := NoSessionRecord(from, to, []byte("hello"), "1.3")

	enc, err := Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Version != "1.3" || dec.FromID != from || dec.ToID != to {
		t.Fatalf("envelope mismatch: %+v", dec)
	}
	payload, ok := ExtractMsgPayload(dec)
	if !ok || !bytes.Equal(payload, []byte("hello")) {
		t.Fatalf("payload mismatch: %v ok=%v", payload, ok)
	}
}

func TestSessionContextFirstSegmentOnly(t *testing.T) {
	r := &Record{
		Version: "1.3",
		FromID:  "a",
		ToID:    "b",
		Type:    TypeSessionContext,
		SessionContext: &SessionContext{
			SessionID:  42,
			SequenceID: 3,
			ExpectedID: 4,
			Payload:    [][]byte{[]byte("first"), []byte("second")},
		},
	}
	enc, err := Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SessionContext.SessionID != 42 || dec.SessionContext.SequenceID != 3 {
		t.Fatalf("session fields mismatch: %+v", dec.SessionContext)
	}
	payload, ok := ExtractMsgPayload(dec)
	if !ok || string(payload) != "first" {
		t.Fatalf("expected first segment only, got %q ok=%v", payload, ok)
	}
}

func TestWebsocketConnectRoundTrip(t *testing.T) {
	r := WebsocketConnectRecord("agent", "controller")
	enc, err := Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Type != TypeWebsocketConnect || dec.WebsocketConnect == nil {
		t.Fatalf("expected websocket connect record, got %+v", dec)
	}
}

func TestMqttConnectRoundTrip(t *testing.T) {
	r := MqttConnectRecord("agent", "controller", 4, "usp/v1/agent/agent")
	enc, err := Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.MqttConnect == nil || dec.MqttConnect.SubscribedTopic != "usp/v1/agent/agent" {
		t.Fatalf("mqtt connect mismatch: %+v", dec.MqttConnect)
	}
}

func TestDisconnectRoundTrip(t *testing.T) {
	r := DisconnectRecord("agent", "controller", "shutdown", 1)
	enc, err := Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Disconnect == nil || dec.Disconnect.Reason != "shutdown" || dec.Disconnect.ReasonCode != 1 {
		t.Fatalf("disconnect mismatch: %+v", dec.Disconnect)
	}
}

func TestDecodeUnknownFieldSkipped(t *testing.T) {
	var b []byte
	b = appendString(b, 99, "future-field")
	b = appendString(b, fieldVersion, "1.3")
	r, err := Decode(b)
	if err != nil {
		t.Fatalf("decode with unknown field: %v", err)
	}
	if r.Version != "1.3" {
		t.Fatalf("expected known field still parsed, got %+v", r)
	}
}
