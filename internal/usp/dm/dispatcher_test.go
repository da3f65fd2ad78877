package dm

import (
	"context"
	"errors"
	"testing"
)

type fakeStats struct{}

func (fakeStats) ReadFWVersion() string { return "23.05.2" }
func (fakeStats) ReadUptime() string    { return "1d 0h 0m 0s" }
func (fakeStats) ReadLoadAvg() string   { return "0.10 0.05 0.01" }
func (fakeStats) ReadFreeMem() string   { return "102400" }

type fakeUCI struct {
	values map[string]string
	sets   map[string]string
	show   string
}

func newFakeUCI() *fakeUCI {
	return &fakeUCI{values: map[string]string{}, sets: map[string]string{}}
}

func (f *fakeUCI) Get(ctx context.Context, path string) string { return f.values[path] }
func (f *fakeUCI) Set(ctx context.Context, path, value string) error {
	f.sets[path] = value
	return nil
}
func (f *fakeUCI) Commit(ctx context.Context, pkg string) error { return nil }
func (f *fakeUCI) Show(ctx context.Context, pkg string) string  { return f.show }

type fakeCamera struct {
	cams    []CameraInfo
	captured []byte
}

func (f *fakeCamera) Discover(ctx context.Context) ([]CameraInfo, error) { return f.cams, nil }
func (f *fakeCamera) Capture(ctx context.Context, ip string) ([]byte, error) {
	return f.captured, nil
}

type fakeFirmware struct {
	downloaded string
	applied    string
}

func (f *fakeFirmware) Download(ctx context.Context, url, destPath string) error {
	f.downloaded = destPath
	return nil
}
func (f *fakeFirmware) Apply(ctx context.Context, path string) error {
	f.applied = path
	return nil
}

type fakeCert struct{ pem string }

func (f *fakeCert) ReadCert(ctx context.Context, path string) (string, error) {
	if f.pem == "" {
		return "", errors.New("no cert")
	}
	return f.pem, nil
}

func newTestDispatcher() *Dispatcher {
	return &Dispatcher{
		Identity: Identity{SysModel: "OptimACS-GW1", MACAddr: "AABBCCDDEEFF"},
		FWDir:    "/tmp/firmware",
		InitCert: "/etc/apclient/certs/init.pem",
		Stats:    fakeStats{},
		UCI:      newFakeUCI(),
		Camera:   &fakeCamera{},
		Firmware: &fakeFirmware{},
		Cert:     &fakeCert{},
	}
}

func TestGetDeviceInfoRootReturnsFullSet(t *testing.T) {
	d := newTestDispatcher()
	res := d.Get(context.Background(), []string{"Device.DeviceInfo."}, 0)
	want := []string{
		"Device.DeviceInfo.HostName",
		"Device.DeviceInfo.SoftwareVersion",
		"Device.DeviceInfo.HardwareVersion",
		"Device.DeviceInfo.SerialNumber",
		"Device.DeviceInfo.UpTime",
		"Device.DeviceInfo.X_OptimACS_LoadAvg",
		"Device.DeviceInfo.X_OptimACS_FreeMem",
	}
	for _, k := range want {
		if _, ok := res[k]; !ok {
			t.Fatalf("missing key %q in %+v", k, res)
		}
	}
	if res["Device.DeviceInfo.UpTime"] != "1d 0h 0m 0s" {
		t.Fatalf("unexpected uptime value: %+v", res)
	}
}

func TestGetDeviceInfoSingleLeaf(t *testing.T) {
	d := newTestDispatcher()
	res := d.Get(context.Background(), []string{"Device.DeviceInfo.UpTime"}, 0)
	if len(res) != 1 || res["Device.DeviceInfo.UpTime"] != "1d 0h 0m 0s" {
		t.Fatalf("unexpected single-leaf result: %+v", res)
	}
}

func TestGetMaxDepthFilters(t *testing.T) {
	d := newTestDispatcher()
	// Device.DeviceInfo. has 2 dots; depth 0 (unlimited here means "no
	// filter" per max_depth==0 rule) vs max_depth=1 keeps only keys with
	// at most 2+1=3 dots — every DeviceInfo leaf has exactly 2 dots, so
	// all 7 survive; this asserts the filter doesn't wrongly drop them.
	res := d.Get(context.Background(), []string{"Device.DeviceInfo."}, 1)
	if len(res) != 7 {
		t.Fatalf("expected all 7 DeviceInfo leaves under max_depth=1, got %+v", res)
	}
}

func TestSetDeviceInfoReadOnly(t *testing.T) {
	d := newTestDispatcher()
	err := d.Set(context.Background(), []KV{{Path: "Device.DeviceInfo.HostName", Value: "x"}})
	if err == nil {
		t.Fatalf("expected error setting read-only DeviceInfo path")
	}
}

func TestSetWiFiSSIDCommits(t *testing.T) {
	d := newTestDispatcher()
	uci := d.UCI.(*fakeUCI)
	err := d.Set(context.Background(), []KV{{Path: "Device.WiFi.SSID.1.SSID", Value: "MyNet"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uci.sets["wireless.@wifi-iface[0].ssid"] != "MyNet" {
		t.Fatalf("expected ssid set via uci, got %+v", uci.sets)
	}
}

func TestOperateUnknownCommand(t *testing.T) {
	d := newTestDispatcher()
	_, err := d.Operate(context.Background(), "Device.Unknown.Foo()", nil)
	if err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestOperateCaptureCameraNotFound(t *testing.T) {
	d := newTestDispatcher()
	_, err := d.Operate(context.Background(), "Device.X_OptimACS_Camera.1.Capture()", nil)
	if err == nil {
		t.Fatalf("expected error when no cameras discovered")
	}
}

func TestOperateCaptureCameraSuccess(t *testing.T) {
	d := newTestDispatcher()
	d.Camera = &fakeCamera{
		cams:     []CameraInfo{{IP: "192.168.1.50", MAC: "00:11:22:33:44:55"}},
		captured: []byte{1, 2, 3, 4},
	}
	out, err := d.Operate(context.Background(), "Device.X_OptimACS_Camera.1.Capture()", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["camera_ip"] != "192.168.1.50" || out["image_size"] != "4" {
		t.Fatalf("unexpected capture output: %+v", out)
	}
}

func TestOperateDownloadFirmwareRequiresURL(t *testing.T) {
	d := newTestDispatcher()
	_, err := d.Operate(context.Background(), "Device.X_OptimACS_Firmware.1.Download()", map[string]string{})
	if err == nil {
		t.Fatalf("expected error when url missing")
	}
}

func TestOperateDownloadFirmwareSuccess(t *testing.T) {
	d := newTestDispatcher()
	out, err := d.Operate(context.Background(), "Device.X_OptimACS_Firmware.1.Download()",
		map[string]string{"url": "https://updates.example/fw.bin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["status"] != "applied" {
		t.Fatalf("unexpected output: %+v", out)
	}
	fw := d.Firmware.(*fakeFirmware)
	if fw.applied == "" {
		t.Fatalf("expected firmware Apply to have been called")
	}
}

func TestOperateIssueCert(t *testing.T) {
	d := newTestDispatcher()
	d.Cert = &fakeCert{pem: "-----BEGIN CERTIFICATE-----..."}
	out, err := d.Operate(context.Background(), "Device.X_OptimACS_Security.1.IssueCert()", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["csr"] == "" {
		t.Fatalf("expected csr in output")
	}
}
