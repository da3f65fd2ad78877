package mqttmtp

import (
	"fmt"
	"testing"

	"github.com/optimacs/usp-agent/internal/usp/endpoint"
	"github.com/optimacs/usp-agent/internal/usp/record"
)

func TestSanitiseTopic(t *testing.T) {
	cases := map[string]string{
		"oui:00005A:AABBCCDDEEFF": "oui%3A00005A%3AAABBCCDDEEFF",
		"a#b":                     "a%23b",
		"a+b":                     "a%2Bb",
		"plain":                   "plain",
	}
	for in, want := range cases {
		if got := sanitiseTopic(in); got != want {
			t.Errorf("sanitiseTopic(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTopicNaming(t *testing.T) {
	agentID := endpoint.FromMAC("00005A", "AABBCCDDEEFF")
	controllerID := endpoint.ID("oui:00005A:OptimACS-Controller-1")

	agentTopic := fmt.Sprintf("usp/v1/agent/%s", sanitiseTopic(agentID.String()))
	controllerTopic := fmt.Sprintf("usp/v1/controller/%s", sanitiseTopic(controllerID.String()))

	if agentTopic != "usp/v1/agent/oui%3A00005A%3AAABBCCDDEEFF" {
		t.Fatalf("unexpected agent topic: %s", agentTopic)
	}
	if controllerTopic != "usp/v1/controller/oui%3A00005A%3AOptimACS-Controller-1" {
		t.Fatalf("unexpected controller topic: %s", controllerTopic)
	}
}

func TestMqttConnectRecordRoundTrip(t *testing.T) {
	agentID := endpoint.FromMAC("00005A", "AABBCCDDEEFF")
	controllerID := endpoint.ID("oui:00005A:OptimACS-Controller-1")

	rec := record.MqttConnectRecord(agentID, controllerID, 0, "usp/v1/agent/inbox")
	enc, err := record.Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := record.Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.MqttConnect == nil {
		t.Fatalf("expected MqttConnect to be set")
	}
	if dec.FromID != agentID || dec.ToID != controllerID {
		t.Fatalf("endpoint mismatch: %+v", dec)
	}
}
