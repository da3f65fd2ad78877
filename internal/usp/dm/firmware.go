package dm

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

func (d *Dispatcher) getFirmware(path string) Params {
	m := Params{}
	if strings.HasSuffix(path, "AvailableVersion") || strings.HasSuffix(path, "Device.X_OptimACS_Firmware.") {
		m["Device.X_OptimACS_Firmware.AvailableVersion"] = d.Stats.ReadFWVersion()
	}
	return m
}

// operateDownloadFirmware downloads the image named by the "url" input arg
// into FWDir and applies it via the platform's sysupgrade path.
func (d *Dispatcher) operateDownloadFirmware(ctx context.Context, command string, inputArgs map[string]string) (map[string]string, error) {
	fwURL := inputArgs["url"]
	if fwURL == "" {
		return nil, errors.New("firmware download requires 'url' input arg")
	}
	fwPath := filepath.Join(d.FWDir, "firmware.bin")
	if err := d.Firmware.Download(ctx, fwURL, fwPath); err != nil {
		return nil, err
	}
	if err := d.Firmware.Apply(ctx, fwPath); err != nil {
		return nil, err
	}
	return map[string]string{"status": "applied"}, nil
}
