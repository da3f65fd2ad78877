package wsmtp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/optimacs/usp-agent/internal/usp/dm"
	"github.com/optimacs/usp-agent/internal/usp/endpoint"
	"github.com/optimacs/usp-agent/internal/usp/engine"
	"github.com/optimacs/usp-agent/internal/usp/message"
	"github.com/optimacs/usp-agent/internal/usp/record"
)

type fakeStats struct{}

func (fakeStats) ReadFWVersion() string { return "23.05.2" }
func (fakeStats) ReadUptime() string    { return "0d 0h 0m 1s" }
func (fakeStats) ReadLoadAvg() string   { return "0.00 0.00 0.00" }
func (fakeStats) ReadFreeMem() string   { return "102400" }

type fakeUCI struct{}

func (fakeUCI) Get(ctx context.Context, path string) string       { return "" }
func (fakeUCI) Set(ctx context.Context, path, value string) error { return nil }
func (fakeUCI) Commit(ctx context.Context, pkg string) error      { return nil }
func (fakeUCI) Show(ctx context.Context, pkg string) string       { return "" }

func newTestEngine() *engine.Engine {
	dispatcher := &dm.Dispatcher{
		Identity: dm.Identity{SysModel: "OptimACS-GW1", MACAddr: "AABBCCDDEEFF"},
		Stats:    fakeStats{},
		UCI:      fakeUCI{},
	}
	return engine.New(dispatcher, engine.NewVersionCell(), zerolog.Nop())
}

// TestConnectAndServeHandlesGetRequest runs a fake Controller WebSocket
// server that echoes the subprotocol, captures the Agent's initial
// connect+GetSupportedProto frames, then pushes a Get request and expects
// a GetResp frame back.
func TestConnectAndServeHandlesGetRequest(t *testing.T) {
	agentID := endpoint.FromMAC("00005A", "AABBCCDDEEFF")
	controllerID := endpoint.ID("oui:00005A:OptimACS-Controller-1")

	upgrader := websocket.Upgrader{
		Subprotocols: []string{subprotocol},
	}

	received := make(chan *record.Record, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for i := 0; i < 2; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			rec, err := record.Decode(data)
			if err != nil {
				t.Errorf("decode frame %d: %v", i, err)
				return
			}
			received <- rec
		}

		getReq := &message.Msg{
			Header: message.Header{MsgID: "g1", MsgType: message.TypeGet},
			Body:   message.GetRequest{Paths: []string{"Device.DeviceInfo.UpTime"}},
		}
		msgBytes, err := message.Encode(getReq)
		if err != nil {
			t.Errorf("encode get request: %v", err)
			return
		}
		reqRec := record.NoSessionRecord(controllerID, agentID, msgBytes, "1.3")
		enc, err := record.Encode(reqRec)
		if err != nil {
			t.Errorf("encode record: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, enc); err != nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		respRec, err := record.Decode(data)
		if err != nil {
			t.Errorf("decode response record: %v", err)
			return
		}
		received <- respRec
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := New(url, agentID, controllerID, nil, newTestEngine(), zerolog.Nop())
	c.ReconnectWait = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	var frames []*record.Record
	for i := 0; i < 3; i++ {
		select {
		case rec := <-received:
			frames = append(frames, rec)
		case <-time.After(4 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
	cancel()
	<-done

	if frames[0].WebsocketConnect == nil {
		t.Fatalf("expected first frame to be a WebsocketConnect record, got %+v", frames[0])
	}
	if frames[1].NoSessionContext == nil {
		t.Fatalf("expected second frame to carry get_supported_proto, got %+v", frames[1])
	}

	respPayload, ok := record.ExtractMsgPayload(frames[2])
	if !ok {
		t.Fatalf("expected response record to carry a msg payload")
	}
	respMsg, err := message.Decode(respPayload)
	if err != nil {
		t.Fatalf("decode response msg: %v", err)
	}
	getResp, ok := respMsg.Body.(message.GetResponse)
	if !ok {
		t.Fatalf("expected GetResponse, got %T", respMsg.Body)
	}
	if len(getResp.ReqPathResults) != 1 {
		t.Fatalf("expected 1 path result, got %d", len(getResp.ReqPathResults))
	}
}

func TestSanitiseSubprotocolEcho(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Sec-WebSocket-Protocol", "v1.usp")
	found := false
	for _, p := range strings.Split(hdr.Get("Sec-WebSocket-Protocol"), ",") {
		if strings.TrimSpace(p) == subprotocol {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected subprotocol to be found in header")
	}
}
