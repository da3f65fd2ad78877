package dm

import (
	"context"
	"strings"
)

func (d *Dispatcher) getWiFi(ctx context.Context, path string) Params {
	m := Params{}
	if strings.Contains(path, "SSID.") || strings.HasSuffix(path, "Device.WiFi.") {
		if ssid := d.UCI.Get(ctx, "wireless.@wifi-iface[0].ssid"); ssid != "" {
			m["Device.WiFi.SSID.1.SSID"] = ssid
		}
	}
	if strings.Contains(path, "AccessPoint.") || strings.HasSuffix(path, "Device.WiFi.") {
		enc := d.UCI.Get(ctx, "wireless.@wifi-iface[0].encryption")
		key := d.UCI.Get(ctx, "wireless.@wifi-iface[0].key")
		m["Device.WiFi.AccessPoint.1.Security.ModeEnabled"] = enc
		m["Device.WiFi.AccessPoint.1.Security.KeyPassphrase"] = key
	}
	if strings.Contains(path, "Radio.") || strings.HasSuffix(path, "Device.WiFi.") {
		m["Device.WiFi.Radio.1.Channel"] = d.UCI.Get(ctx, "wireless.radio0.channel")
	}
	return m
}

func (d *Dispatcher) setWiFi(ctx context.Context, path, value string) error {
	switch {
	case strings.HasSuffix(path, ".SSID"):
		if err := d.UCI.Set(ctx, "wireless.@wifi-iface[0].ssid", value); err != nil {
			return err
		}
		return d.UCI.Commit(ctx, "wireless")
	case strings.HasSuffix(path, ".KeyPassphrase"):
		if err := d.UCI.Set(ctx, "wireless.@wifi-iface[0].key", value); err != nil {
			return err
		}
		return d.UCI.Commit(ctx, "wireless")
	case strings.HasSuffix(path, ".ModeEnabled"):
		if err := d.UCI.Set(ctx, "wireless.@wifi-iface[0].encryption", value); err != nil {
			return err
		}
		return d.UCI.Commit(ctx, "wireless")
	case strings.HasSuffix(path, ".Channel"):
		if err := d.UCI.Set(ctx, "wireless.radio0.channel", value); err != nil {
			return err
		}
		return d.UCI.Commit(ctx, "wireless")
	}
	return nil
}
