package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"
)

// Firmware downloads images over HTTP and applies them via sysupgrade.
type Firmware struct {
	http *http.Client
}

func NewFirmware() *Firmware {
	return &Firmware{http: &http.Client{Timeout: 5 * time.Minute}}
}

// Download implements dm.FirmwareApply.
func (f *Firmware) Download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("firmware download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("firmware download: HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("firmware download: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("firmware download: %w", err)
	}
	return nil
}

// Apply implements dm.FirmwareApply, invoking sysupgrade with -n (do not
// preserve config, the Controller will re-provision) and -q (quiet).
// sysupgrade reboots the device on success and does not return.
func (f *Firmware) Apply(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "/sbin/sysupgrade", "-n", "-q", path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sysupgrade failed: %w", err)
	}
	return nil
}
