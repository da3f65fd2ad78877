package dm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func (d *Dispatcher) getCamera(ctx context.Context, path string) Params {
	m := Params{}
	if d.Camera == nil {
		return m
	}
	cameras, err := d.Camera.Discover(ctx)
	if err != nil {
		return m
	}
	for i, cam := range cameras {
		base := fmt.Sprintf("Device.X_OptimACS_Camera.%d.", i+1)
		m[base+"IPAddress"] = cam.IP
		m[base+"MACAddress"] = cam.MAC
	}
	return m
}

// operateCaptureCamera extracts the instance index from the command path
// (e.g. Device.X_OptimACS_Camera.1.Capture()) and captures a still from the
// camera discovered at that index.
func (d *Dispatcher) operateCaptureCamera(ctx context.Context, command string, _ map[string]string) (map[string]string, error) {
	cameras, err := d.Camera.Discover(ctx)
	if err != nil {
		return nil, err
	}
	idx := 1
	for _, tok := range strings.Split(command, ".") {
		if tok == "" {
			continue
		}
		allDigits := true
		for _, c := range tok {
			if c < '0' || c > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			if n, err := strconv.Atoi(tok); err == nil {
				idx = n
			}
			break
		}
	}
	if idx < 1 || idx > len(cameras) {
		return nil, fmt.Errorf("camera %d not found", idx)
	}
	cam := cameras[idx-1]
	image, err := d.Camera.Capture(ctx, cam.IP)
	if err != nil {
		return nil, fmt.Errorf("capture failed: %w", err)
	}
	return map[string]string{
		"image_size": strconv.Itoa(len(image)),
		"camera_ip":  cam.IP,
	}, nil
}
