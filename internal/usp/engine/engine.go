// Package engine implements the Agent message engine (TR-369 §6): routing
// decoded incoming Msgs to the data-model dispatcher, building responses,
// USP version negotiation, and the Boot!/status-heartbeat notifications.
package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/optimacs/usp-agent/internal/usp/dm"
	"github.com/optimacs/usp-agent/internal/usp/message"
)

// PositionStore is implemented by platform.PositionStore. It is optional —
// a nil Engine.Position means no GNSS reader is configured on this device.
type PositionStore interface {
	Get() (lat, lon string, ok bool)
}

// NetworkStatus is implemented by platform.SystemStats. It is optional —
// a nil Engine.Network means link-status heartbeat fields are omitted.
type NetworkStatus interface {
	ReadModemStatus() bool
	ReadWirelessStatus() bool
}

const statusSubscriptionID = "status"

// VersionCell holds the process-wide negotiated USP protocol version. It
// starts at "1.3" and, whenever a GetSupportedProtoResp arrives, is set to
// the first version the Controller lists (TR-369 §6.2.1).
type VersionCell struct {
	mu      sync.Mutex
	version string
}

func NewVersionCell() *VersionCell {
	return &VersionCell{version: "1.3"}
}

func (v *VersionCell) Get() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

func (v *VersionCell) Set(version string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version = version
}

// Engine holds the per-agent state needed to answer Controller messages.
type Engine struct {
	Dispatcher *dm.Dispatcher
	Version    *VersionCell
	Log        zerolog.Logger

	// Position is optional; nil when no GNSS reader is configured.
	Position PositionStore

	// Network is optional; nil when link-status heartbeat fields aren't
	// reported on this device.
	Network NetworkStatus

	// prevStatus is used by BuildStatusValueChanges to detect changed
	// parameter values between heartbeat ticks.
	mu         sync.Mutex
	prevStatus map[string]string
}

func New(dispatcher *dm.Dispatcher, version *VersionCell, log zerolog.Logger) *Engine {
	return &Engine{
		Dispatcher: dispatcher,
		Version:    version,
		Log:        log,
		prevStatus: map[string]string{},
	}
}

// HandleIncoming decodes one incoming Msg and returns the encoded response
// Msg, if any response is required.
func (e *Engine) HandleIncoming(ctx context.Context, msgBytes []byte) ([]byte, bool) {
	msg, err := message.Decode(msgBytes)
	if err != nil {
		e.Log.Warn().Err(err).Msg("usp engine: failed to decode incoming msg")
		return nil, false
	}

	msgID := msg.Header.MsgID
	var response *message.Msg

	switch body := msg.Body.(type) {
	case message.GetRequest:
		params := e.Dispatcher.Get(ctx, body.Paths, body.MaxDepth)
		response = message.BuildGetResp(msgID, params)

	case message.SetRequest:
		updates := extractSetUpdates(body)
		objPaths := extractSetObjPaths(body)
		if err := e.Dispatcher.Set(ctx, updates); err != nil {
			response = message.BuildError(msgID, 7200, err.Error())
		} else {
			response = message.BuildSetResp(msgID, objPaths)
		}

	case message.OperateRequest:
		output, err := e.Dispatcher.Operate(ctx, body.Command, body.InputArgs)
		if err != nil {
			response = message.BuildError(msgID, 7800, err.Error())
		} else {
			response = message.BuildOperateResp(msgID, body.Command, body.CommandKey, output)
		}

	case message.NotifyResponse:
		// Controller acknowledged our notify — no response needed.
		return nil, false

	case message.GetSupportedProtoResponse:
		versions := splitVersions(body.AgentSupportedVersions)
		e.Log.Info().Strs("versions", versions).Msg("controller supports USP versions")
		if len(versions) > 0 {
			e.Version.Set(versions[0])
			e.Log.Info().Str("version", versions[0]).Msg("USP version negotiated")
		}
		response = message.BuildBootNotify("", false, e.collectBootParams(ctx))

	default:
		switch msg.Header.MsgType {
		case message.TypeGetSupportedDM, message.TypeGetInstances, message.TypeAdd, message.TypeDelete:
			e.Log.Warn().Int32("msg_type", int32(msg.Header.MsgType)).Msg("unsupported message type")
			response = message.BuildError(msgID, 7004, "NOT_SUPPORTED")
		default:
			e.Log.Warn().Int32("msg_type", int32(msg.Header.MsgType)).Msg("unknown message type")
			response = message.BuildError(msgID, 7000, "MESSAGE_NOT_UNDERSTOOD")
		}
	}

	if response == nil {
		return nil, false
	}
	enc, err := message.Encode(response)
	if err != nil {
		e.Log.Error().Err(err).Msg("usp engine: failed to encode response msg")
		return nil, false
	}
	return enc, true
}

func (e *Engine) collectBootParams(ctx context.Context) map[string]string {
	m := map[string]string{
		"Device.DeviceInfo.HostName":          e.Dispatcher.Identity.SysModel,
		"Device.DeviceInfo.SoftwareVersion":   e.Dispatcher.Stats.ReadFWVersion(),
		"Device.DeviceInfo.HardwareVersion":   e.Dispatcher.Identity.SysModel,
		"Device.DeviceInfo.SerialNumber":      e.Dispatcher.Identity.MACAddr,
		"Device.DeviceInfo.UpTime":            e.Dispatcher.Stats.ReadUptime(),
		"Device.DeviceInfo.X_OptimACS_LoadAvg": e.Dispatcher.Stats.ReadLoadAvg(),
		"Device.DeviceInfo.X_OptimACS_FreeMem":  e.Dispatcher.Stats.ReadFreeMem(),
		"Cause":           "LocalReboot",
		"FirmwareUpdated": "false",
	}
	return m
}

// BuildStatusValueChanges samples the status parameters and returns one
// ValueChange Notify per parameter whose value differs from the previous
// tick. UpTime is excluded from diffing since it always changes.
func (e *Engine) BuildStatusValueChanges() [][]byte {
	current := map[string]string{
		"Device.DeviceInfo.UpTime":             e.Dispatcher.Stats.ReadUptime(),
		"Device.DeviceInfo.X_OptimACS_LoadAvg": e.Dispatcher.Stats.ReadLoadAvg(),
		"Device.DeviceInfo.X_OptimACS_FreeMem": e.Dispatcher.Stats.ReadFreeMem(),
	}
	changeDetected := []string{
		"Device.DeviceInfo.X_OptimACS_LoadAvg",
		"Device.DeviceInfo.X_OptimACS_FreeMem",
	}
	if e.Position != nil {
		if lat, lon, ok := e.Position.Get(); ok {
			current["Device.DeviceInfo.X_OptimACS_Latitude"] = lat
			current["Device.DeviceInfo.X_OptimACS_Longitude"] = lon
			changeDetected = append(changeDetected,
				"Device.DeviceInfo.X_OptimACS_Latitude",
				"Device.DeviceInfo.X_OptimACS_Longitude")
		}
	}
	if e.Network != nil {
		current["Device.DeviceInfo.X_OptimACS_ModemStatus"] = boolToStr(e.Network.ReadModemStatus())
		current["Device.DeviceInfo.X_OptimACS_WirelessStatus"] = boolToStr(e.Network.ReadWirelessStatus())
		changeDetected = append(changeDetected,
			"Device.DeviceInfo.X_OptimACS_ModemStatus",
			"Device.DeviceInfo.X_OptimACS_WirelessStatus")
	}
	for path, val := range current {
		e.Log.Info().Str("path", path).Str("value", val).Msg("usp status")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var notifies [][]byte
	for _, path := range changeDetected {
		val := current[path]
		if e.prevStatus[path] == val {
			continue
		}
		msg := message.BuildValueChangeNotify(statusSubscriptionID, path, val)
		if enc, err := message.Encode(msg); err == nil {
			notifies = append(notifies, enc)
		}
	}
	e.prevStatus = current
	return notifies
}

func boolToStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func extractSetUpdates(s message.SetRequest) []dm.KV {
	var updates []dm.KV
	for _, obj := range s.UpdateObjs {
		for param, value := range obj.ParamSettings {
			updates = append(updates, dm.KV{Path: obj.ObjPath + param, Value: value})
		}
	}
	return updates
}

func extractSetObjPaths(s message.SetRequest) []string {
	paths := make([]string, 0, len(s.UpdateObjs))
	for _, obj := range s.UpdateObjs {
		paths = append(paths, obj.ObjPath)
	}
	return paths
}

func splitVersions(raw string) []string {
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
