package dm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// getDHCPv4 reads static DHCP leases from UCI's dnsmasq config. Pairs are
// matched by line index within `uci show dhcp`'s flat key=value dump —
// a host.N.mac= line is paired with the host.N.ip= line for the same N.
func (d *Dispatcher) getDHCPv4(ctx context.Context, path string) Params {
	out := d.UCI.Show(ctx, "dhcp")
	m := Params{}
	lines := strings.Split(out, "\n")
	idx := 1
	for _, line := range lines {
		if !strings.Contains(line, "host.") || !strings.Contains(line, ".mac=") {
			continue
		}
		macParts := strings.SplitN(line, "=", 2)
		mac := ""
		if len(macParts) == 2 {
			mac = strings.Trim(macParts[1], "'")
		}
		// ipKey is this host entry's key with its .mac suffix replaced by
		// .ip, so the lookup finds the host.N.ip= line for the same N.
		ipKey := strings.TrimSuffix(macParts[0], ".mac") + ".ip="
		ip := ""
		for _, l := range lines {
			if strings.HasPrefix(l, ipKey) {
				if parts := strings.SplitN(l, "=", 2); len(parts) == 2 {
					ip = strings.Trim(parts[1], "'")
				}
				break
			}
		}
		base := fmt.Sprintf("Device.DHCPv4.Server.Pool.1.StaticAddress.%d.", idx)
		m[base+"Chaddr"] = mac
		m[base+"Yiaddr"] = ip
		idx++
	}
	return m
}

func (d *Dispatcher) setDHCPv4(ctx context.Context, path, value string) error {
	return errors.New("DHCPv4 static address modification not yet implemented on agent side")
}
