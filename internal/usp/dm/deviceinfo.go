package dm

import "fmt"

const deviceInfoBase = "Device.DeviceInfo."

func (d *Dispatcher) getDeviceInfo(path string) Params {
	m := Params{}
	insert := func(suffix, val string) { m[deviceInfoBase+suffix] = val }

	switch suffix := path[len(deviceInfoBase):]; suffix {
	case "HostName", "":
		insert("HostName", d.Identity.SysModel)
		if suffix == "" {
			insert("SoftwareVersion", d.Stats.ReadFWVersion())
			insert("HardwareVersion", d.Identity.SysModel)
			insert("SerialNumber", d.Identity.MACAddr)
			insert("UpTime", d.Stats.ReadUptime())
			insert("X_OptimACS_LoadAvg", d.Stats.ReadLoadAvg())
			insert("X_OptimACS_FreeMem", d.Stats.ReadFreeMem())
		}
	case "SoftwareVersion":
		insert("SoftwareVersion", d.Stats.ReadFWVersion())
	case "HardwareVersion":
		insert("HardwareVersion", d.Identity.SysModel)
	case "SerialNumber":
		insert("SerialNumber", d.Identity.MACAddr)
	case "UpTime":
		insert("UpTime", d.Stats.ReadUptime())
	case "X_OptimACS_LoadAvg":
		insert("X_OptimACS_LoadAvg", d.Stats.ReadLoadAvg())
	case "X_OptimACS_FreeMem":
		insert("X_OptimACS_FreeMem", d.Stats.ReadFreeMem())
	}
	return m
}

// setDeviceInfo is always rejected: DeviceInfo is a read-only subtree here.
func (d *Dispatcher) setDeviceInfo(path, value string) error {
	return fmt.Errorf("Device.DeviceInfo.* is read-only")
}
