// Package record implements the USP Record wire envelope (TR-369 §5).
//
// Encoding is hand-assembled protobuf wire format via
// google.golang.org/protobuf/encoding/protowire rather than generated
// bindings — there is no protoc step in this build.
package record

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/optimacs/usp-agent/internal/usp/endpoint"
)

// PayloadSecurity mirrors the Record.payload_security enum. Only PLAINTEXT
// is ever produced by this Agent.
type PayloadSecurity uint32

const PayloadSecurityPlaintext PayloadSecurity = 0

// Type tags which oneof variant a Record carries.
type Type int

const (
	TypeUnknown Type = iota
	TypeNoSessionContext
	TypeSessionContext
	TypeWebsocketConnect
	TypeMqttConnect
	TypeDisconnect
)

type NoSessionContext struct {
	Payload []byte
}

type SessionContext struct {
	SessionID       uint64
	SequenceID      uint64
	ExpectedID      uint64
	Payload         [][]byte
	PayloadSARState uint32
}

type WebsocketConnect struct{}

type MqttConnect struct {
	Version         uint32
	SubscribedTopic string
}

type Disconnect struct {
	Reason     string
	ReasonCode uint32
}

// Record is the outer envelope framing one USP Msg (or connect/disconnect
// control frame) per MTP unit (WS Binary frame, MQTT publish payload).
type Record struct {
	Version         string
	ToID            endpoint.ID
	FromID          endpoint.ID
	PayloadSecurity PayloadSecurity
	MacSignature    []byte
	SenderCert      []byte

	Type Type

	NoSessionContext *NoSessionContext
	SessionContext   *SessionContext
	WebsocketConnect *WebsocketConnect
	MqttConnect      *MqttConnect
	Disconnect       *Disconnect
}

const (
	fieldVersion          protowire.Number = 1
	fieldToID             protowire.Number = 2
	fieldFromID           protowire.Number = 3
	fieldPayloadSecurity  protowire.Number = 4
	fieldMacSignature     protowire.Number = 5
	fieldSenderCert       protowire.Number = 6
	fieldNoSessionContext protowire.Number = 7
	fieldSessionContext   protowire.Number = 8
	fieldWebsocketConnect protowire.Number = 9
	fieldMqttConnect      protowire.Number = 10
	fieldDisconnect       protowire.Number = 11
)

// Constructors ---------------------------------------------------------

// NoSessionRecord builds a Record carrying a bare Msg payload, the only
// framing used over the WebSocket MTP and the common case over MQTT.
func NoSessionRecord(from, to endpoint.ID, msgPayload []byte, version string) *Record {
	return &Record{
		Version:          version,
		FromID:           from,
		ToID:             to,
		Type:             TypeNoSessionContext,
		NoSessionContext: &NoSessionContext{Payload: msgPayload},
	}
}

// WebsocketConnectRecord is sent once, immediately after the WS handshake.
func WebsocketConnectRecord(from, to endpoint.ID) *Record {
	return &Record{
		Version:          "1.3",
		FromID:           from,
		ToID:             to,
		Type:             TypeWebsocketConnect,
		WebsocketConnect: &WebsocketConnect{},
	}
}

// MqttConnectRecord is published once, immediately after the MQTT
// subscribe, to announce the agent's inbox topic.
func MqttConnectRecord(from, to endpoint.ID, version uint32, subscribedTopic string) *Record {
	return &Record{
		Version: "1.3",
		FromID:  from,
		ToID:    to,
		Type:    TypeMqttConnect,
		MqttConnect: &MqttConnect{
			Version:         version,
			SubscribedTopic: subscribedTopic,
		},
	}
}

// DisconnectRecord builds a Disconnect record. Neither MTP sends one on
// shutdown.
func DisconnectRecord(from, to endpoint.ID, reason string, reasonCode uint32) *Record {
	return &Record{
		Version:    "1.3",
		FromID:     from,
		ToID:       to,
		Type:       TypeDisconnect,
		Disconnect: &Disconnect{Reason: reason, ReasonCode: reasonCode},
	}
}

// ExtractMsgPayload returns the inner Msg bytes carried by a Record.
//
// For SessionContext records only the first payload segment is returned —
// segmentation/reassembly (SAR) is not implemented at this revision (see
// spec §9): a Controller that splits a Msg across multiple segments will
// have only its first segment interpreted.
func ExtractMsgPayload(r *Record) ([]byte, bool) {
	switch r.Type {
	case TypeNoSessionContext:
		if r.NoSessionContext == nil {
			return nil, false
		}
		return r.NoSessionContext.Payload, true
	case TypeSessionContext:
		if r.SessionContext == nil || len(r.SessionContext.Payload) == 0 {
			return nil, false
		}
		return r.SessionContext.Payload[0], true
	default:
		return nil, false
	}
}

// Encode / Decode --------------------------------------------------------

func Encode(r *Record) ([]byte, error) {
	var b []byte
	b = appendString(b, fieldVersion, r.Version)
	b = appendString(b, fieldToID, string(r.ToID))
	b = appendString(b, fieldFromID, string(r.FromID))
	b = appendVarint(b, fieldPayloadSecurity, uint64(r.PayloadSecurity))
	b = appendBytesField(b, fieldMacSignature, r.MacSignature)
	b = appendBytesField(b, fieldSenderCert, r.SenderCert)

	switch r.Type {
	case TypeNoSessionContext:
		if r.NoSessionContext == nil {
			return nil, errors.New("record: NoSessionContext type with nil payload")
		}
		var sub []byte
		sub = appendBytesField(sub, 1, r.NoSessionContext.Payload)
		b = appendMessage(b, fieldNoSessionContext, sub)
	case TypeSessionContext:
		if r.SessionContext == nil {
			return nil, errors.New("record: SessionContext type with nil body")
		}
		sc := r.SessionContext
		var sub []byte
		sub = appendVarint(sub, 1, sc.SessionID)
		sub = appendVarint(sub, 2, sc.SequenceID)
		sub = appendVarint(sub, 3, sc.ExpectedID)
		for _, seg := range sc.Payload {
			sub = appendBytesField(sub, 4, seg)
		}
		sub = appendVarint(sub, 5, uint64(sc.PayloadSARState))
		b = appendMessage(b, fieldSessionContext, sub)
	case TypeWebsocketConnect:
		b = appendMessage(b, fieldWebsocketConnect, nil)
	case TypeMqttConnect:
		if r.MqttConnect == nil {
			return nil, errors.New("record: MqttConnect type with nil body")
		}
		var sub []byte
		sub = appendVarint(sub, 1, uint64(r.MqttConnect.Version))
		sub = appendString(sub, 2, r.MqttConnect.SubscribedTopic)
		b = appendMessage(b, fieldMqttConnect, sub)
	case TypeDisconnect:
		if r.Disconnect == nil {
			return nil, errors.New("record: Disconnect type with nil body")
		}
		var sub []byte
		sub = appendString(sub, 1, r.Disconnect.Reason)
		sub = appendVarint(sub, 2, uint64(r.Disconnect.ReasonCode))
		b = appendMessage(b, fieldDisconnect, sub)
	default:
		return nil, fmt.Errorf("record: unknown record type %d", r.Type)
	}
	return b, nil
}

func Decode(data []byte) (*Record, error) {
	r := &Record{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldVersion:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			r.Version = string(v)
			b = b[n:]
		case fieldToID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			r.ToID = endpoint.ID(v)
			b = b[n:]
		case fieldFromID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			r.FromID = endpoint.ID(v)
			b = b[n:]
		case fieldPayloadSecurity:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			r.PayloadSecurity = PayloadSecurity(v)
			b = b[n:]
		case fieldMacSignature:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			r.MacSignature = append([]byte(nil), v...)
			b = b[n:]
		case fieldSenderCert:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			r.SenderCert = append([]byte(nil), v...)
			b = b[n:]
		case fieldNoSessionContext:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			nsc, err := decodeNoSessionContext(sub)
			if err != nil {
				return nil, err
			}
			r.Type = TypeNoSessionContext
			r.NoSessionContext = nsc
			b = b[n:]
		case fieldSessionContext:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sc, err := decodeSessionContext(sub)
			if err != nil {
				return nil, err
			}
			r.Type = TypeSessionContext
			r.SessionContext = sc
			b = b[n:]
		case fieldWebsocketConnect:
			_, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			r.Type = TypeWebsocketConnect
			r.WebsocketConnect = &WebsocketConnect{}
			b = b[n:]
		case fieldMqttConnect:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			mc, err := decodeMqttConnect(sub)
			if err != nil {
				return nil, err
			}
			r.Type = TypeMqttConnect
			r.MqttConnect = mc
			b = b[n:]
		case fieldDisconnect:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			dc, err := decodeDisconnect(sub)
			if err != nil {
				return nil, err
			}
			r.Type = TypeDisconnect
			r.Disconnect = dc
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return r, nil
}

func decodeNoSessionContext(b []byte) (*NoSessionContext, error) {
	nsc := &NoSessionContext{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if num == 1 {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			nsc.Payload = append([]byte(nil), v...)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nsc, nil
}

func decodeSessionContext(b []byte) (*SessionContext, error) {
	sc := &SessionContext{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sc.SessionID = v
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sc.SequenceID = v
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sc.ExpectedID = v
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sc.Payload = append(sc.Payload, append([]byte(nil), v...))
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sc.PayloadSARState = uint32(v)
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return sc, nil
}

func decodeMqttConnect(b []byte) (*MqttConnect, error) {
	mc := &MqttConnect{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			mc.Version = uint32(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			mc.SubscribedTopic = string(v)
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return mc, nil
}

func decodeDisconnect(b []byte) (*Disconnect, error) {
	dc := &Disconnect{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			dc.Reason = string(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			dc.ReasonCode = uint32(v)
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return dc, nil
}

// wire append helpers ----------------------------------------------------

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, []byte(s))
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendMessage always writes the field, even with an empty payload — used
// for oneof submessages whose presence alone matters (WebsocketConnect{}).
func appendMessage(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}
