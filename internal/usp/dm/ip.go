package dm

import (
	"context"
	"strings"
)

const ipInterfacePrefix = "Device.IP.Interface.1.IPv4Address.1."

func (d *Dispatcher) getIPInterface(ctx context.Context, path string) Params {
	m := Params{}
	if strings.HasPrefix(path, ipInterfacePrefix) ||
		path == "Device.IP.Interface." || path == "Device.IP.Interface.1." {
		m[ipInterfacePrefix+"IPAddress"] = d.UCI.Get(ctx, "network.lan.ipaddr")
		m[ipInterfacePrefix+"SubnetMask"] = d.UCI.Get(ctx, "network.lan.netmask")
		m[ipInterfacePrefix+"AddressingType"] = d.UCI.Get(ctx, "network.lan.proto")
	}
	return m
}

func (d *Dispatcher) setIPInterface(ctx context.Context, path, value string) error {
	switch {
	case strings.HasSuffix(path, ".IPAddress"):
		if err := d.UCI.Set(ctx, "network.lan.ipaddr", value); err != nil {
			return err
		}
	case strings.HasSuffix(path, ".SubnetMask"):
		if err := d.UCI.Set(ctx, "network.lan.netmask", value); err != nil {
			return err
		}
	case strings.HasSuffix(path, ".AddressingType"):
		if err := d.UCI.Set(ctx, "network.lan.proto", value); err != nil {
			return err
		}
	}
	return d.UCI.Commit(ctx, "network")
}
