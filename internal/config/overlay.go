package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CameraOverlay maps a camera's IP address to an operator-assigned label, an
// optional supplementary side-file that LoadFile/LoadUCI have no equivalent
// for since it is device-instance metadata, not daemon configuration.
type CameraOverlay struct {
	Cameras map[string]string `yaml:"cameras"`
}

// LoadCameraOverlay reads the optional camera-label YAML file. A missing
// file is not an error; it just means no labels are configured.
func LoadCameraOverlay(path string) (CameraOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CameraOverlay{}, nil
		}
		return CameraOverlay{}, fmt.Errorf("config: read camera overlay %s: %w", path, err)
	}
	var overlay CameraOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return CameraOverlay{}, fmt.Errorf("config: parse camera overlay %s: %w", path, err)
	}
	return overlay, nil
}

// Label returns the operator-assigned label for an IP, or the IP itself
// when no label is configured.
func (o CameraOverlay) Label(ip string) string {
	if label, ok := o.Cameras[ip]; ok && label != "" {
		return label
	}
	return ip
}
