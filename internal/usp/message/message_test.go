package message

import "testing"

func TestGetRespRoundTrip(t *testing.T) {
	msg := BuildGetResp("abc-123", map[string]string{
		"Device.DeviceInfo.UpTime": "4821",
	})
	enc, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Header.MsgID != "abc-123" || dec.Header.MsgType != TypeGetResp {
		t.Fatalf("header mismatch: %+v", dec.Header)
	}
	resp, ok := dec.Body.(GetResponse)
	if !ok {
		t.Fatalf("expected GetResponse body, got %T", dec.Body)
	}
	if len(resp.ReqPathResults) != 1 {
		t.Fatalf("expected 1 RequestedPathResult, got %d", len(resp.ReqPathResults))
	}
	r := resp.ReqPathResults[0]
	if r.RequestedPath != "Device.DeviceInfo.UpTime" {
		t.Fatalf("unexpected requested_path: %q", r.RequestedPath)
	}
	if len(r.ResolvedPathResults) != 1 {
		t.Fatalf("expected 1 ResolvedPathResult, got %d", len(r.ResolvedPathResults))
	}
	rr := r.ResolvedPathResults[0]
	if rr.ResolvedPath != "Device.DeviceInfo.UpTime" {
		t.Fatalf("unexpected resolved_path: %q", rr.ResolvedPath)
	}
	if v, ok := rr.ResultParams[""]; !ok || v != "4821" {
		t.Fatalf("expected result_params[\"\"] = 4821, got %+v", rr.ResultParams)
	}
}

func TestGetRespMultiplePaths(t *testing.T) {
	msg := BuildGetResp("id", map[string]string{
		"Device.DeviceInfo.UpTime":         "10",
		"Device.DeviceInfo.X_OptimACS_LoadAvg": "0.12",
	})
	enc, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp := dec.Body.(GetResponse)
	if len(resp.ReqPathResults) != 2 {
		t.Fatalf("expected 2 RequestedPathResults, got %d", len(resp.ReqPathResults))
	}
	seen := map[string]string{}
	for _, r := range resp.ReqPathResults {
		seen[r.RequestedPath] = r.ResolvedPathResults[0].ResultParams[""]
	}
	if seen["Device.DeviceInfo.UpTime"] != "10" || seen["Device.DeviceInfo.X_OptimACS_LoadAvg"] != "0.12" {
		t.Fatalf("unexpected result set: %+v", seen)
	}
}

func TestSetRespRoundTrip(t *testing.T) {
	msg := BuildSetResp("msg-1", []string{"Device.WiFi.Radio.1.", "Device.WiFi.SSID.1."})
	enc, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp, ok := dec.Body.(SetResponse)
	if !ok {
		t.Fatalf("expected SetResponse body, got %T", dec.Body)
	}
	if len(resp.UpdatedObjResults) != 2 {
		t.Fatalf("expected 2 updated obj results, got %d", len(resp.UpdatedObjResults))
	}
	for _, r := range resp.UpdatedObjResults {
		if !r.OperSuccess {
			t.Fatalf("expected OperSuccess, got %+v", r)
		}
	}
}

func TestOperateRespRoundTrip(t *testing.T) {
	msg := BuildOperateResp("msg-2", "Device.X_OptimACS_Firmware.Apply()", "ck-1",
		map[string]string{"Status": "OK"})
	enc, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp, ok := dec.Body.(OperateResponse)
	if !ok {
		t.Fatalf("expected OperateResponse body, got %T", dec.Body)
	}
	if resp.CommandKey != "ck-1" || len(resp.OperationResults) != 1 {
		t.Fatalf("unexpected operate resp: %+v", resp)
	}
	if resp.OperationResults[0].ExecutedCommand != "Device.X_OptimACS_Firmware.Apply()" {
		t.Fatalf("unexpected executed_command: %q", resp.OperationResults[0].ExecutedCommand)
	}
	if resp.OperationResults[0].OutputArgs["Status"] != "OK" {
		t.Fatalf("unexpected output args: %+v", resp.OperationResults[0].OutputArgs)
	}
}

func TestBootNotifyRoundTrip(t *testing.T) {
	msg := BuildBootNotify("", false, map[string]string{
		"Device.DeviceInfo.HostName": "gw1",
		"Cause":                      "LocalReboot",
	})
	enc, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	req, ok := dec.Body.(NotifyRequest)
	if !ok {
		t.Fatalf("expected NotifyRequest body, got %T", dec.Body)
	}
	if req.Event == nil || req.Event.EventName != "Boot!" || req.Event.ObjPath != "Device." {
		t.Fatalf("unexpected event: %+v", req.Event)
	}
	if req.Event.Params["Device.DeviceInfo.HostName"] != "gw1" {
		t.Fatalf("unexpected event params: %+v", req.Event.Params)
	}
}

func TestValueChangeNotifyRoundTrip(t *testing.T) {
	msg := BuildValueChangeNotify("sub-1", "Device.DeviceInfo.X_OptimACS_FreeMem", "102400")
	enc, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	req := dec.Body.(NotifyRequest)
	if req.ValueChange == nil || req.ValueChange.ParamValue != "102400" {
		t.Fatalf("unexpected value change: %+v", req.ValueChange)
	}
}

func TestGetSupportedProtoRoundTrip(t *testing.T) {
	msg := BuildGetSupportedProto()
	enc, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	req, ok := dec.Body.(GetSupportedProtoRequest)
	if !ok || req.ControllerSupportedVersions != "1.3" {
		t.Fatalf("unexpected get_supported_proto: %+v", dec.Body)
	}
}

func TestErrorRoundTrip(t *testing.T) {
	msg := BuildError("msg-3", 7000, "MESSAGE_NOT_UNDERSTOOD")
	enc, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e, ok := dec.Body.(ErrorMsg)
	if !ok || e.ErrCode != 7000 || e.ErrMsg != "MESSAGE_NOT_UNDERSTOOD" {
		t.Fatalf("unexpected error msg: %+v", dec.Body)
	}
}

func TestNewMsgIDUnique(t *testing.T) {
	a := NewMsgID()
	b := NewMsgID()
	if a == "" || b == "" || a == b {
		t.Fatalf("expected distinct non-empty msg ids, got %q %q", a, b)
	}
}
