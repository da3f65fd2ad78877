package platform

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/optimacs/usp-agent/internal/usp/dm"
)

const maxCameras = 8

// CameraScanner discovers Axis IP cameras on the local network by ARP
// scanning and probing each host's systemready CGI endpoint, and captures
// JPEG snapshots over the same permissive HTTP client.
type CameraScanner struct {
	http *http.Client
}

func NewCameraScanner() *CameraScanner {
	return &CameraScanner{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// Discover implements dm.Camera.
func (c *CameraScanner) Discover(ctx context.Context) ([]dm.CameraInfo, error) {
	var cameras []dm.CameraInfo
	for _, entry := range ReadARPTable() {
		if len(cameras) >= maxCameras {
			break
		}
		if c.isAxisCamera(ctx, entry.IP) {
			cameras = append(cameras, dm.CameraInfo{IP: entry.IP, MAC: entry.MAC})
		}
	}
	return cameras, nil
}

// isAxisCamera probes the Axis systemready CGI over HTTPS then HTTP,
// matching the original C client's curl fallback order.
func (c *CameraScanner) isAxisCamera(ctx context.Context, ip string) bool {
	for _, scheme := range []string{"https", "http"} {
		url := fmt.Sprintf("%s://%s/axis-cgi/systemready.cgi?action=1", scheme, ip)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := c.http.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 300 || resp.StatusCode == http.StatusUnauthorized {
			return true
		}
	}
	return false
}

// Capture implements dm.Camera, fetching a CIF-resolution JPEG snapshot.
func (c *CameraScanner) Capture(ctx context.Context, ip string) ([]byte, error) {
	url := fmt.Sprintf("http://%s/axis-cgi/jpg/image.cgi?resolution=CIF", ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image capture from %s: HTTP %d", ip, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
