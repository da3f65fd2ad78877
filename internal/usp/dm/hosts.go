package dm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// getHosts reads /etc/hosts and reports each address/name pair as one
// Device.Hosts.Host.N. instance.
func (d *Dispatcher) getHosts(ctx context.Context, path string) Params {
	m := Params{}
	content, err := os.ReadFile("/etc/hosts")
	if err != nil {
		return m
	}
	idx := 1
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		ip, hostname := fields[0], fields[1]
		base := fmt.Sprintf("Device.Hosts.Host.%d.", idx)
		m[base+"IPAddress"] = ip
		m[base+"HostName"] = hostname
		idx++
	}
	return m
}

func (d *Dispatcher) setHosts(ctx context.Context, path, value string) error {
	return errors.New("Device.Hosts.Host.* modification not yet implemented on agent side")
}
