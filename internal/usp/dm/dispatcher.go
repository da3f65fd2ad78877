// Package dm implements the TR-181 data model dispatcher (agent side): GET,
// SET and OPERATE handling, routed by path prefix to the relevant subtree.
package dm

import (
	"context"
	"fmt"
	"strings"
)

// Params is a flat path -> value result map, as produced by Get and
// consumed by message.BuildGetResp.
type Params map[string]string

// Identity carries the small set of device facts the DeviceInfo subtree
// needs but that don't belong to any one collaborator interface.
type Identity struct {
	SysModel string
	MACAddr  string
}

// Dispatcher routes GET/SET/OPERATE requests to the TR-181 subtree
// implementations. Its collaborators are narrow interfaces so the dm
// package never imports internal/platform directly.
type Dispatcher struct {
	Identity Identity
	FWDir    string
	InitCert string

	Stats    Stats
	UCI      UCI
	Camera   Camera
	Firmware FirmwareApply
	Cert     CertReader
}

// Stats reads live system counters.
type Stats interface {
	ReadFWVersion() string
	ReadUptime() string
	ReadLoadAvg() string
	ReadFreeMem() string
}

// UCI wraps the OpenWrt config database shell commands.
type UCI interface {
	Get(ctx context.Context, path string) string
	Set(ctx context.Context, path, value string) error
	Commit(ctx context.Context, pkg string) error
	Show(ctx context.Context, pkg string) string
}

// CameraInfo describes one discovered Axis camera.
type CameraInfo struct {
	IP  string
	MAC string
}

// Camera discovers and captures from on-premise IP cameras.
type Camera interface {
	Discover(ctx context.Context) ([]CameraInfo, error)
	Capture(ctx context.Context, ip string) ([]byte, error)
}

// FirmwareApply downloads and applies a firmware image.
type FirmwareApply interface {
	Download(ctx context.Context, url, destPath string) error
	Apply(ctx context.Context, path string) error
}

// CertReader reads a PEM certificate from a path; IssueCert() uses it to
// report the initial provisioning certificate.
type CertReader interface {
	ReadCert(ctx context.Context, path string) (string, error)
}

// Get handles a GET request for the given paths. max_depth limits how many
// levels below each requested path are returned; 0 means unlimited
// (TR-369 §6.1.2). Each path is dispatched independently and results are
// merged into one flat map, matching the aggregation the Controller expects
// back from a single GET_RESP.
func (d *Dispatcher) Get(ctx context.Context, paths []string, maxDepth uint32) Params {
	result := Params{}
	for _, path := range paths {
		partial := d.dispatchGet(ctx, path)
		if maxDepth == 0 {
			for k, v := range partial {
				result[k] = v
			}
			continue
		}
		baseDepth := strings.Count(path, ".")
		for k, v := range partial {
			if strings.Count(k, ".") <= baseDepth+int(maxDepth) {
				result[k] = v
			}
		}
	}
	return result
}

// Set applies a batch of (path, value) updates, in order, failing fast on
// the first error.
func (d *Dispatcher) Set(ctx context.Context, updates []KV) error {
	for _, u := range updates {
		if err := d.dispatchSet(ctx, u.Path, u.Value); err != nil {
			return err
		}
	}
	return nil
}

// KV is one SET update: a fully-qualified parameter path and its new value.
type KV struct {
	Path  string
	Value string
}

// Operate dispatches an OPERATE command to the matching subtree, returning
// its output_args on success.
func (d *Dispatcher) Operate(ctx context.Context, command string, inputArgs map[string]string) (map[string]string, error) {
	switch {
	case strings.HasPrefix(command, "Device.X_OptimACS_Camera.") && strings.HasSuffix(command, ".Capture()"):
		return d.operateCaptureCamera(ctx, command, inputArgs)
	case strings.HasPrefix(command, "Device.X_OptimACS_Firmware.") && strings.HasSuffix(command, ".Download()"):
		return d.operateDownloadFirmware(ctx, command, inputArgs)
	case strings.HasPrefix(command, "Device.X_OptimACS_Security.") && strings.HasSuffix(command, ".IssueCert()"):
		return d.operateIssueCert(ctx, command, inputArgs)
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

func (d *Dispatcher) dispatchGet(ctx context.Context, path string) Params {
	switch {
	case strings.HasPrefix(path, "Device.DeviceInfo."):
		return d.getDeviceInfo(path)
	case strings.HasPrefix(path, "Device.WiFi."):
		return d.getWiFi(ctx, path)
	case strings.HasPrefix(path, "Device.IP.Interface."):
		return d.getIPInterface(ctx, path)
	case strings.HasPrefix(path, "Device.DHCPv4."):
		return d.getDHCPv4(ctx, path)
	case strings.HasPrefix(path, "Device.Hosts."):
		return d.getHosts(ctx, path)
	case strings.HasPrefix(path, "Device.X_OptimACS_Camera."):
		return d.getCamera(ctx, path)
	case strings.HasPrefix(path, "Device.X_OptimACS_Firmware."):
		return d.getFirmware(path)
	default:
		return Params{}
	}
}

func (d *Dispatcher) dispatchSet(ctx context.Context, path, value string) error {
	switch {
	case strings.HasPrefix(path, "Device.DeviceInfo."):
		return d.setDeviceInfo(path, value)
	case strings.HasPrefix(path, "Device.WiFi."):
		return d.setWiFi(ctx, path, value)
	case strings.HasPrefix(path, "Device.IP.Interface."):
		return d.setIPInterface(ctx, path, value)
	case strings.HasPrefix(path, "Device.DHCPv4."):
		return d.setDHCPv4(ctx, path, value)
	case strings.HasPrefix(path, "Device.Hosts."):
		return d.setHosts(ctx, path, value)
	case strings.HasPrefix(path, "Device.X_OptimACS_Security."):
		return d.setSecurity(ctx, path, value)
	default:
		return fmt.Errorf("read-only or unknown path: %s", path)
	}
}
