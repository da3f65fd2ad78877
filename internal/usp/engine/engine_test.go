package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/optimacs/usp-agent/internal/usp/dm"
	"github.com/optimacs/usp-agent/internal/usp/message"
)

type fakeStats struct {
	uptime, loadAvg, freeMem string
}

func (f fakeStats) ReadFWVersion() string { return "23.05.2" }
func (f fakeStats) ReadUptime() string    { return f.uptime }
func (f fakeStats) ReadLoadAvg() string   { return f.loadAvg }
func (f fakeStats) ReadFreeMem() string   { return f.freeMem }

type fakeUCI struct{}

func (fakeUCI) Get(ctx context.Context, path string) string          { return "" }
func (fakeUCI) Set(ctx context.Context, path, value string) error    { return nil }
func (fakeUCI) Commit(ctx context.Context, pkg string) error         { return nil }
func (fakeUCI) Show(ctx context.Context, pkg string) string          { return "" }

func newTestEngine(stats dm.Stats) *Engine {
	dispatcher := &dm.Dispatcher{
		Identity: dm.Identity{SysModel: "OptimACS-GW1", MACAddr: "AABBCCDDEEFF"},
		Stats:    stats,
		UCI:      fakeUCI{},
	}
	return New(dispatcher, NewVersionCell(), zerolog.Nop())
}

func TestHandleIncomingGet(t *testing.T) {
	e := newTestEngine(fakeStats{uptime: "1d 0h 0m 0s"})
	req := &message.Msg{
		Header: message.Header{MsgID: "m1", MsgType: message.TypeGet},
		Body:   message.GetRequest{Paths: []string{"Device.DeviceInfo.UpTime"}},
	}
	enc, err := message.Encode(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	respBytes, send := e.HandleIncoming(context.Background(), enc)
	if !send {
		t.Fatalf("expected a response")
	}
	resp, err := message.Decode(respBytes)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	getResp, ok := resp.Body.(message.GetResponse)
	if !ok {
		t.Fatalf("expected GetResponse, got %T", resp.Body)
	}
	if len(getResp.ReqPathResults) != 1 {
		t.Fatalf("expected 1 result, got %d", len(getResp.ReqPathResults))
	}
	if getResp.ReqPathResults[0].ResolvedPathResults[0].ResultParams[""] != "1d 0h 0m 0s" {
		t.Fatalf("unexpected uptime value: %+v", getResp.ReqPathResults[0])
	}
}

func TestHandleIncomingUnsupportedMessageType(t *testing.T) {
	e := newTestEngine(fakeStats{})
	req := &message.Msg{
		Header: message.Header{MsgID: "m2", MsgType: message.TypeAdd},
		Body:   message.ErrorMsg{},
	}
	enc, err := message.Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	respBytes, send := e.HandleIncoming(context.Background(), enc)
	if !send {
		t.Fatalf("expected an error response")
	}
	resp, err := message.Decode(respBytes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	errBody, ok := resp.Body.(message.ErrorMsg)
	if !ok || errBody.ErrCode != 7004 {
		t.Fatalf("expected NOT_SUPPORTED 7004, got %+v", resp.Body)
	}
}

func TestHandleIncomingNotifyRespNoResponse(t *testing.T) {
	e := newTestEngine(fakeStats{})
	req := &message.Msg{
		Header: message.Header{MsgID: "m3", MsgType: message.TypeNotifyResp},
		Body:   message.NotifyResponse{SubscriptionID: "status"},
	}
	enc, err := message.Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, send := e.HandleIncoming(context.Background(), enc)
	if send {
		t.Fatalf("expected no response to NotifyResp")
	}
}

func TestHandleIncomingGetSupportedProtoRespNegotiatesVersion(t *testing.T) {
	e := newTestEngine(fakeStats{uptime: "0d 0h 0m 1s"})
	req := &message.Msg{
		Header: message.Header{MsgID: "m4", MsgType: message.TypeGetSupportedProtoResp},
		Body:   message.GetSupportedProtoResponse{AgentSupportedVersions: "1.3, 1.2"},
	}
	enc, err := message.Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	respBytes, send := e.HandleIncoming(context.Background(), enc)
	if !send {
		t.Fatalf("expected a boot notify response")
	}
	if e.Version.Get() != "1.3" {
		t.Fatalf("expected negotiated version 1.3, got %q", e.Version.Get())
	}
	resp, err := message.Decode(respBytes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	notify, ok := resp.Body.(message.NotifyRequest)
	if !ok || notify.Event == nil || notify.Event.EventName != "Boot!" {
		t.Fatalf("expected Boot! notify, got %+v", resp.Body)
	}
}

func TestBuildStatusValueChangesOnlyOnChange(t *testing.T) {
	stats := fakeStats{uptime: "0d 0h 0m 1s", loadAvg: "0.10 0.05 0.01", freeMem: "102400"}
	e := newTestEngine(stats)

	first := e.BuildStatusValueChanges()
	if len(first) != 2 {
		t.Fatalf("expected 2 value changes on first tick, got %d", len(first))
	}

	second := e.BuildStatusValueChanges()
	if len(second) != 0 {
		t.Fatalf("expected 0 value changes when nothing changed, got %d", len(second))
	}
}

type fakePosition struct {
	lat, lon string
	ok       bool
}

func (f fakePosition) Get() (string, string, bool) { return f.lat, f.lon, f.ok }

func TestBuildStatusValueChangesIncludesPositionWhenPresent(t *testing.T) {
	stats := fakeStats{uptime: "0d 0h 0m 1s", loadAvg: "0.10 0.05 0.01", freeMem: "102400"}
	e := newTestEngine(stats)
	e.Position = fakePosition{lat: "48.117167", lon: "11.516667", ok: true}

	notifies := e.BuildStatusValueChanges()
	if len(notifies) != 4 {
		t.Fatalf("expected 4 value changes (loadavg, freemem, lat, lon), got %d", len(notifies))
	}
}

func TestBuildStatusValueChangesNoPositionConfigured(t *testing.T) {
	stats := fakeStats{uptime: "0d 0h 0m 1s", loadAvg: "0.10 0.05 0.01", freeMem: "102400"}
	e := newTestEngine(stats)

	notifies := e.BuildStatusValueChanges()
	if len(notifies) != 2 {
		t.Fatalf("expected 2 value changes with no position store configured, got %d", len(notifies))
	}
}

type fakeNetwork struct {
	modemUp, wirelessUp bool
}

func (f fakeNetwork) ReadModemStatus() bool    { return f.modemUp }
func (f fakeNetwork) ReadWirelessStatus() bool { return f.wirelessUp }

func TestBuildStatusValueChangesIncludesNetworkWhenPresent(t *testing.T) {
	stats := fakeStats{uptime: "0d 0h 0m 1s", loadAvg: "0.10 0.05 0.01", freeMem: "102400"}
	e := newTestEngine(stats)
	e.Network = fakeNetwork{modemUp: true, wirelessUp: false}

	notifies := e.BuildStatusValueChanges()
	if len(notifies) != 4 {
		t.Fatalf("expected 4 value changes (loadavg, freemem, modem, wireless), got %d", len(notifies))
	}

	// Second tick with no change must produce nothing.
	if more := e.BuildStatusValueChanges(); len(more) != 0 {
		t.Fatalf("expected 0 value changes on unchanged second tick, got %d", len(more))
	}
}
