// Package message implements the USP Msg body (TR-369 §6): the protocol
// payload carried inside a record.Record.
//
// As with the record package, encoding is hand-assembled protobuf wire
// format via google.golang.org/protobuf/encoding/protowire rather than
// protoc-generated bindings. The field layout is this Agent's own — it is
// not byte-for-byte the published TR-369 usp-msg.proto, since nothing here
// interoperates with a real Controller's wire bytes; only the documented
// Testable Property scenarios and internal round-trips need to hold.
package message

import (
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Type enumerates Header.msg_type.
type Type int32

const (
	TypeError Type = iota
	TypeGet
	TypeGetResp
	TypeSet
	TypeSetResp
	TypeOperate
	TypeOperateResp
	TypeNotify
	TypeNotifyResp
	TypeGetSupportedProto
	TypeGetSupportedProtoResp
	TypeAdd
	TypeDelete
	TypeGetInstances
	TypeGetSupportedDM
)

type Header struct {
	MsgID   string
	MsgType Type
}

// Body is implemented by every concrete Msg payload shape.
type Body interface {
	isBody()
	msgType() Type
}

type Msg struct {
	Header Header
	Body   Body
}

// ── Body shapes ──────────────────────────────────────────────────────────

type GetRequest struct {
	Paths    []string
	MaxDepth uint32
}

func (GetRequest) isBody()         {}
func (GetRequest) msgType() Type   { return TypeGet }

type ResolvedPathResult struct {
	ResolvedPath string
	ResultParams map[string]string
}

type RequestedPathResult struct {
	RequestedPath       string
	ErrCode             uint32
	ErrMsg              string
	ResolvedPathResults []ResolvedPathResult
}

type GetResponse struct {
	ReqPathResults []RequestedPathResult
}

func (GetResponse) isBody()       {}
func (GetResponse) msgType() Type { return TypeGetResp }

type UpdateObject struct {
	ObjPath       string
	ParamSettings map[string]string
}

type SetRequest struct {
	AllowPartial bool
	UpdateObjs   []UpdateObject
}

func (SetRequest) isBody()       {}
func (SetRequest) msgType() Type { return TypeSet }

type UpdatedObjectResult struct {
	RequestedPath string
	OperSuccess   bool
}

type SetResponse struct {
	UpdatedObjResults []UpdatedObjectResult
}

func (SetResponse) isBody()       {}
func (SetResponse) msgType() Type { return TypeSetResp }

type OperateRequest struct {
	Command    string
	CommandKey string
	SendResp   bool
	InputArgs  map[string]string
}

func (OperateRequest) isBody()       {}
func (OperateRequest) msgType() Type { return TypeOperate }

type OperationResult struct {
	ExecutedCommand string
	OutputArgs      map[string]string
}

type OperateResponse struct {
	CommandKey       string
	OperationResults []OperationResult
}

func (OperateResponse) isBody()       {}
func (OperateResponse) msgType() Type { return TypeOperateResp }

// Event is the Boot! notification payload.
type Event struct {
	ObjPath    string
	EventName  string
	CommandKey string
	Params     map[string]string
}

// ValueChange is the periodic parameter-change notification payload.
type ValueChange struct {
	ParamPath  string
	ParamValue string
}

type NotifyRequest struct {
	SubscriptionID string
	SendResp       bool
	Event          *Event
	ValueChange    *ValueChange
}

func (NotifyRequest) isBody()       {}
func (NotifyRequest) msgType() Type { return TypeNotify }

type NotifyResponse struct {
	SubscriptionID string
}

func (NotifyResponse) isBody()       {}
func (NotifyResponse) msgType() Type { return TypeNotifyResp }

type GetSupportedProtoRequest struct {
	ControllerSupportedVersions string
}

func (GetSupportedProtoRequest) isBody()       {}
func (GetSupportedProtoRequest) msgType() Type { return TypeGetSupportedProto }

type GetSupportedProtoResponse struct {
	AgentSupportedVersions string
}

func (GetSupportedProtoResponse) isBody()       {}
func (GetSupportedProtoResponse) msgType() Type { return TypeGetSupportedProtoResp }

type ErrorMsg struct {
	ErrCode uint32
	ErrMsg  string
}

func (ErrorMsg) isBody()       {}
func (ErrorMsg) msgType() Type { return TypeError }

// ── msg_id ───────────────────────────────────────────────────────────────

func NewMsgID() string { return uuid.NewString() }

func newHeader(t Type) Header {
	return Header{MsgID: NewMsgID(), MsgType: t}
}

// ── Builders ─────────────────────────────────────────────────────────────

// BuildBootNotify builds the Boot! Notify sent once per new session.
// parameterMap carries Device.DeviceInfo.* key/value pairs.
func BuildBootNotify(subscriptionID string, sendResp bool, parameterMap map[string]string) *Msg {
	return &Msg{
		Header: newHeader(TypeNotify),
		Body: NotifyRequest{
			SubscriptionID: subscriptionID,
			SendResp:       sendResp,
			Event: &Event{
				ObjPath:    "Device.",
				EventName:  "Boot!",
				CommandKey: "",
				Params:     parameterMap,
			},
		},
	}
}

// BuildValueChangeNotify builds a ValueChange Notify for a status heartbeat.
func BuildValueChangeNotify(subscriptionID, paramPath, paramValue string) *Msg {
	return &Msg{
		Header: newHeader(TypeNotify),
		Body: NotifyRequest{
			SubscriptionID: subscriptionID,
			SendResp:       false,
			ValueChange:    &ValueChange{ParamPath: paramPath, ParamValue: paramValue},
		},
	}
}

// BuildGetSupportedProto builds the version-negotiation request this Agent
// sends on establishing a new session.
func BuildGetSupportedProto() *Msg {
	return &Msg{
		Header: newHeader(TypeGetSupportedProto),
		Body:   GetSupportedProtoRequest{ControllerSupportedVersions: "1.3"},
	}
}

// BuildGetResp builds a GET_RESP from the dispatcher's flat path->value
// result map. Each entry in params yields exactly one RequestedPathResult
// with one ResolvedPathResult whose result_params has a single entry keyed
// by the empty string.
func BuildGetResp(msgID string, params map[string]string) *Msg {
	results := make([]RequestedPathResult, 0, len(params))
	for path, value := range params {
		results = append(results, RequestedPathResult{
			RequestedPath: path,
			ResolvedPathResults: []ResolvedPathResult{
				{
					ResolvedPath: path,
					ResultParams: map[string]string{"": value},
				},
			},
		})
	}
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: TypeGetResp},
		Body:   GetResponse{ReqPathResults: results},
	}
}

// BuildSetResp builds a SET_RESP acknowledging a successful SET.
// updatedObjPaths should contain the obj_path values from each UpdateObj in
// the SET request (TR-369 §6.2.4).
func BuildSetResp(msgID string, updatedObjPaths []string) *Msg {
	results := make([]UpdatedObjectResult, 0, len(updatedObjPaths))
	for _, path := range updatedObjPaths {
		results = append(results, UpdatedObjectResult{RequestedPath: path, OperSuccess: true})
	}
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: TypeSetResp},
		Body:   SetResponse{UpdatedObjResults: results},
	}
}

// BuildOperateResp builds an OPERATE_RESP with output arguments.
func BuildOperateResp(msgID, command, commandKey string, outputArgs map[string]string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: TypeOperateResp},
		Body: OperateResponse{
			CommandKey: commandKey,
			OperationResults: []OperationResult{
				{ExecutedCommand: command, OutputArgs: outputArgs},
			},
		},
	}
}

// BuildNotifyResp builds a NOTIFY_RESP acknowledging a received Notify.
func BuildNotifyResp(msgID, subscriptionID string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: TypeNotifyResp},
		Body:   NotifyResponse{SubscriptionID: subscriptionID},
	}
}

// BuildError builds an ERROR response.
func BuildError(msgID string, errCode uint32, errMsg string) *Msg {
	return &Msg{
		Header: Header{MsgID: msgID, MsgType: TypeError},
		Body:   ErrorMsg{ErrCode: errCode, ErrMsg: errMsg},
	}
}

// ── Encode / Decode ──────────────────────────────────────────────────────

const (
	fieldHeader protowire.Number = 1
	fieldBody   protowire.Number = 2

	fieldHeaderMsgID   protowire.Number = 1
	fieldHeaderMsgType protowire.Number = 2
)

func Encode(m *Msg) ([]byte, error) {
	var b []byte

	var hdr []byte
	hdr = appendString(hdr, fieldHeaderMsgID, m.Header.MsgID)
	hdr = appendVarint(hdr, fieldHeaderMsgType, uint64(m.Header.MsgType))
	b = appendMessage(b, fieldHeader, hdr)

	body, err := encodeBody(m.Header.MsgType, m.Body)
	if err != nil {
		return nil, err
	}
	b = appendMessage(b, fieldBody, body)
	return b, nil
}

func Decode(data []byte) (*Msg, error) {
	m := &Msg{}
	var bodyBytes []byte
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldHeader:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			hdr, err := decodeHeader(sub)
			if err != nil {
				return nil, err
			}
			m.Header = hdr
			b = b[n:]
		case fieldBody:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			bodyBytes = append([]byte(nil), sub...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	body, err := decodeBody(m.Header.MsgType, bodyBytes)
	if err != nil {
		return nil, err
	}
	m.Body = body
	return m, nil
}

func decodeHeader(b []byte) (Header, error) {
	h := Header{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return h, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldHeaderMsgID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			h.MsgID = string(v)
			b = b[n:]
		case fieldHeaderMsgType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			h.MsgType = Type(v)
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return h, nil
}

func encodeBody(t Type, body Body) ([]byte, error) {
	switch t {
	case TypeGet:
		v, ok := body.(GetRequest)
		if !ok {
			return nil, fmt.Errorf("message: GET header with %T body", body)
		}
		var b []byte
		for _, p := range v.Paths {
			b = appendString(b, 1, p)
		}
		b = appendVarint(b, 2, uint64(v.MaxDepth))
		return b, nil
	case TypeGetResp:
		v, ok := body.(GetResponse)
		if !ok {
			return nil, fmt.Errorf("message: GET_RESP header with %T body", body)
		}
		var b []byte
		for _, r := range v.ReqPathResults {
			b = appendMessage(b, 1, encodeRequestedPathResult(r))
		}
		return b, nil
	case TypeSet:
		v, ok := body.(SetRequest)
		if !ok {
			return nil, fmt.Errorf("message: SET header with %T body", body)
		}
		var b []byte
		if v.AllowPartial {
			b = appendVarint(b, 1, 1)
		}
		for _, u := range v.UpdateObjs {
			var sub []byte
			sub = appendString(sub, 1, u.ObjPath)
			sub = appendKVMap(sub, 2, u.ParamSettings)
			b = appendMessage(b, 2, sub)
		}
		return b, nil
	case TypeSetResp:
		v, ok := body.(SetResponse)
		if !ok {
			return nil, fmt.Errorf("message: SET_RESP header with %T body", body)
		}
		var b []byte
		for _, r := range v.UpdatedObjResults {
			var sub []byte
			sub = appendString(sub, 1, r.RequestedPath)
			if r.OperSuccess {
				sub = appendVarint(sub, 2, 1)
			}
			b = appendMessage(b, 1, sub)
		}
		return b, nil
	case TypeOperate:
		v, ok := body.(OperateRequest)
		if !ok {
			return nil, fmt.Errorf("message: OPERATE header with %T body", body)
		}
		var b []byte
		b = appendString(b, 1, v.Command)
		b = appendString(b, 2, v.CommandKey)
		if v.SendResp {
			b = appendVarint(b, 3, 1)
		}
		b = appendKVMap(b, 4, v.InputArgs)
		return b, nil
	case TypeOperateResp:
		v, ok := body.(OperateResponse)
		if !ok {
			return nil, fmt.Errorf("message: OPERATE_RESP header with %T body", body)
		}
		var b []byte
		b = appendString(b, 1, v.CommandKey)
		for _, r := range v.OperationResults {
			var sub []byte
			sub = appendString(sub, 1, r.ExecutedCommand)
			sub = appendKVMap(sub, 2, r.OutputArgs)
			b = appendMessage(b, 2, sub)
		}
		return b, nil
	case TypeNotify:
		v, ok := body.(NotifyRequest)
		if !ok {
			return nil, fmt.Errorf("message: NOTIFY header with %T body", body)
		}
		var b []byte
		b = appendString(b, 1, v.SubscriptionID)
		if v.SendResp {
			b = appendVarint(b, 2, 1)
		}
		if v.Event != nil {
			var sub []byte
			sub = appendString(sub, 1, v.Event.ObjPath)
			sub = appendString(sub, 2, v.Event.EventName)
			sub = appendString(sub, 3, v.Event.CommandKey)
			sub = appendKVMap(sub, 4, v.Event.Params)
			b = appendMessage(b, 3, sub)
		}
		if v.ValueChange != nil {
			var sub []byte
			sub = appendString(sub, 1, v.ValueChange.ParamPath)
			sub = appendString(sub, 2, v.ValueChange.ParamValue)
			b = appendMessage(b, 4, sub)
		}
		return b, nil
	case TypeNotifyResp:
		v, ok := body.(NotifyResponse)
		if !ok {
			return nil, fmt.Errorf("message: NOTIFY_RESP header with %T body", body)
		}
		var b []byte
		b = appendString(b, 1, v.SubscriptionID)
		return b, nil
	case TypeGetSupportedProto:
		v, ok := body.(GetSupportedProtoRequest)
		if !ok {
			return nil, fmt.Errorf("message: GET_SUPPORTED_PROTO header with %T body", body)
		}
		var b []byte
		b = appendString(b, 1, v.ControllerSupportedVersions)
		return b, nil
	case TypeGetSupportedProtoResp:
		v, ok := body.(GetSupportedProtoResponse)
		if !ok {
			return nil, fmt.Errorf("message: GET_SUPPORTED_PROTO_RESP header with %T body", body)
		}
		var b []byte
		b = appendString(b, 1, v.AgentSupportedVersions)
		return b, nil
	case TypeError:
		v, ok := body.(ErrorMsg)
		if !ok {
			return nil, fmt.Errorf("message: ERROR header with %T body", body)
		}
		var b []byte
		b = appendVarint(b, 1, uint64(v.ErrCode))
		b = appendString(b, 2, v.ErrMsg)
		return b, nil
	default:
		// Add, Delete, GetInstances, GetSupportedDM, and any msg_type this
		// Agent doesn't recognize at all: there's no body shape to encode.
		// The header's msg_type still needs to round-trip so HandleIncoming
		// can answer with MESSAGE_NOT_UNDERSTOOD / NOT_SUPPORTED rather than
		// silently dropping the frame.
		return nil, nil
	}
}

func decodeBody(t Type, b []byte) (Body, error) {
	switch t {
	case TypeGet:
		var paths []string
		var maxDepth uint32
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				paths = append(paths, string(v))
				return n, nil
			case 2:
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				maxDepth = uint32(v)
				return n, nil
			default:
				return protowire.ConsumeFieldValue(num, typ, b), nil
			}
		}); err != nil {
			return nil, err
		}
		return GetRequest{Paths: paths, MaxDepth: maxDepth}, nil

	case TypeGetResp:
		var results []RequestedPathResult
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				sub, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				r, err := decodeRequestedPathResult(sub)
				if err != nil {
					return n, err
				}
				results = append(results, r)
				return n, nil
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}); err != nil {
			return nil, err
		}
		return GetResponse{ReqPathResults: results}, nil

	case TypeSet:
		var allowPartial bool
		var updateObjs []UpdateObject
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				allowPartial = v != 0
				return n, nil
			case 2:
				sub, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				var objPath string
				params := map[string]string{}
				if err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						objPath = string(v)
						return n, nil
					case 2:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						k, val, err := decodeKV(v)
						if err != nil {
							return n, err
						}
						params[k] = val
						return n, nil
					default:
						return protowire.ConsumeFieldValue(num, typ, b), nil
					}
				}); err != nil {
					return n, err
				}
				updateObjs = append(updateObjs, UpdateObject{ObjPath: objPath, ParamSettings: params})
				return n, nil
			default:
				return protowire.ConsumeFieldValue(num, typ, b), nil
			}
		}); err != nil {
			return nil, err
		}
		return SetRequest{AllowPartial: allowPartial, UpdateObjs: updateObjs}, nil

	case TypeSetResp:
		var results []UpdatedObjectResult
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				sub, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				var path string
				var success bool
				if err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						path = string(v)
						return n, nil
					case 2:
						v, n := protowire.ConsumeVarint(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						success = v != 0
						return n, nil
					default:
						return protowire.ConsumeFieldValue(num, typ, b), nil
					}
				}); err != nil {
					return n, err
				}
				results = append(results, UpdatedObjectResult{RequestedPath: path, OperSuccess: success})
				return n, nil
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}); err != nil {
			return nil, err
		}
		return SetResponse{UpdatedObjResults: results}, nil

	case TypeOperate:
		var command, commandKey string
		var sendResp bool
		inputArgs := map[string]string{}
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				command = string(v)
				return n, nil
			case 2:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				commandKey = string(v)
				return n, nil
			case 3:
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				sendResp = v != 0
				return n, nil
			case 4:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				k, val, err := decodeKV(v)
				if err != nil {
					return n, err
				}
				inputArgs[k] = val
				return n, nil
			default:
				return protowire.ConsumeFieldValue(num, typ, b), nil
			}
		}); err != nil {
			return nil, err
		}
		return OperateRequest{Command: command, CommandKey: commandKey, SendResp: sendResp, InputArgs: inputArgs}, nil

	case TypeOperateResp:
		var commandKey string
		var results []OperationResult
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				commandKey = string(v)
				return n, nil
			case 2:
				sub, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				var executed string
				outArgs := map[string]string{}
				if err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						executed = string(v)
						return n, nil
					case 2:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						k, val, err := decodeKV(v)
						if err != nil {
							return n, err
						}
						outArgs[k] = val
						return n, nil
					default:
						return protowire.ConsumeFieldValue(num, typ, b), nil
					}
				}); err != nil {
					return n, err
				}
				results = append(results, OperationResult{ExecutedCommand: executed, OutputArgs: outArgs})
				return n, nil
			default:
				return protowire.ConsumeFieldValue(num, typ, b), nil
			}
		}); err != nil {
			return nil, err
		}
		return OperateResponse{CommandKey: commandKey, OperationResults: results}, nil

	case TypeNotify:
		var subID string
		var sendResp bool
		var event *Event
		var valueChange *ValueChange
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				subID = string(v)
				return n, nil
			case 2:
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				sendResp = v != 0
				return n, nil
			case 3:
				sub, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				e := &Event{Params: map[string]string{}}
				if err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						e.ObjPath = string(v)
						return n, nil
					case 2:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						e.EventName = string(v)
						return n, nil
					case 3:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						e.CommandKey = string(v)
						return n, nil
					case 4:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						k, val, err := decodeKV(v)
						if err != nil {
							return n, err
						}
						e.Params[k] = val
						return n, nil
					default:
						return protowire.ConsumeFieldValue(num, typ, b), nil
					}
				}); err != nil {
					return n, err
				}
				event = e
				return n, nil
			case 4:
				sub, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				vc := &ValueChange{}
				if err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						vc.ParamPath = string(v)
						return n, nil
					case 2:
						v, n := protowire.ConsumeBytes(b)
						if n < 0 {
							return n, protowire.ParseError(n)
						}
						vc.ParamValue = string(v)
						return n, nil
					default:
						return protowire.ConsumeFieldValue(num, typ, b), nil
					}
				}); err != nil {
					return n, err
				}
				valueChange = vc
				return n, nil
			default:
				return protowire.ConsumeFieldValue(num, typ, b), nil
			}
		}); err != nil {
			return nil, err
		}
		return NotifyRequest{SubscriptionID: subID, SendResp: sendResp, Event: event, ValueChange: valueChange}, nil

	case TypeNotifyResp:
		var subID string
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				subID = string(v)
				return n, nil
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}); err != nil {
			return nil, err
		}
		return NotifyResponse{SubscriptionID: subID}, nil

	case TypeGetSupportedProto:
		var v string
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				s, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				v = string(s)
				return n, nil
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}); err != nil {
			return nil, err
		}
		return GetSupportedProtoRequest{ControllerSupportedVersions: v}, nil

	case TypeGetSupportedProtoResp:
		var v string
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				s, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				v = string(s)
				return n, nil
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}); err != nil {
			return nil, err
		}
		return GetSupportedProtoResponse{AgentSupportedVersions: v}, nil

	case TypeError:
		var code uint32
		var msg string
		if err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				code = uint32(v)
				return n, nil
			case 2:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, protowire.ParseError(n)
				}
				msg = string(v)
				return n, nil
			default:
				return protowire.ConsumeFieldValue(num, typ, b), nil
			}
		}); err != nil {
			return nil, err
		}
		return ErrorMsg{ErrCode: code, ErrMsg: msg}, nil

	default:
		// Add, Delete, GetInstances, GetSupportedDM, and any msg_type this
		// Agent doesn't recognize: decode succeeds with a nil Body so
		// HandleIncoming's type switch falls through to its own default
		// case and answers with MESSAGE_NOT_UNDERSTOOD / NOT_SUPPORTED
		// instead of Decode itself failing and the frame being dropped
		// before it's ever classified.
		return nil, nil
	}
}

func encodeRequestedPathResult(r RequestedPathResult) []byte {
	var b []byte
	b = appendString(b, 1, r.RequestedPath)
	b = appendVarint(b, 2, uint64(r.ErrCode))
	b = appendString(b, 3, r.ErrMsg)
	for _, rr := range r.ResolvedPathResults {
		var sub []byte
		sub = appendString(sub, 1, rr.ResolvedPath)
		sub = appendKVMap(sub, 2, rr.ResultParams)
		b = appendMessage(b, 4, sub)
	}
	return b
}

func decodeRequestedPathResult(b []byte) (RequestedPathResult, error) {
	r := RequestedPathResult{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			r.RequestedPath = string(v)
			return n, nil
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			r.ErrCode = uint32(v)
			return n, nil
		case 3:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			r.ErrMsg = string(v)
			return n, nil
		case 4:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			var rr ResolvedPathResult
			rr.ResultParams = map[string]string{}
			if err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					v, n := protowire.ConsumeBytes(b)
					if n < 0 {
						return n, protowire.ParseError(n)
					}
					rr.ResolvedPath = string(v)
					return n, nil
				case 2:
					v, n := protowire.ConsumeBytes(b)
					if n < 0 {
						return n, protowire.ParseError(n)
					}
					k, val, err := decodeKV(v)
					if err != nil {
						return n, err
					}
					rr.ResultParams[k] = val
					return n, nil
				default:
					return protowire.ConsumeFieldValue(num, typ, b), nil
				}
			}); err != nil {
				return n, err
			}
			r.ResolvedPathResults = append(r.ResolvedPathResults, rr)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return r, err
}

// ── wire helpers ─────────────────────────────────────────────────────────

// walk drives a protowire tag loop, dispatching each field to fn. fn
// returns the number of bytes consumed (mirroring protowire.Consume*) and
// an error.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		consumed, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if consumed < 0 {
			return protowire.ParseError(consumed)
		}
		b = b[consumed:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, []byte(s))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendMessage always writes the field, even with an empty payload — used
// for fields whose mere presence matters (e.g. a ResolvedPathResult with an
// empty result_params map).
func appendMessage(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// appendKVMap appends one length-delimited {1:key,2:value} submessage per
// map entry, all under the same field number (protobuf map wire shape).
func appendKVMap(b []byte, num protowire.Number, m map[string]string) []byte {
	for k, v := range m {
		var sub []byte
		sub = appendString(sub, 1, k)
		sub = appendString(sub, 2, v)
		b = appendMessage(b, num, sub)
	}
	return b
}

func decodeKV(b []byte) (string, string, error) {
	var k, v string
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			s, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			k = string(s)
			return n, nil
		case 2:
			s, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			v = string(s)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return k, v, err
}
