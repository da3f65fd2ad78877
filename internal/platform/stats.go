// Package platform implements the host-facing collaborators the data model
// dispatcher depends on through narrow interfaces: system stats, UCI
// config access, camera discovery/capture, firmware apply, and TLS setup.
package platform

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// candidate interface names tried, in order, when no mac_addr is configured.
var macIfaceCandidates = []string{
	"br-lan",
	"eth0", "eth1",
	"eth0.1",
	"phy0-ap0", "phy1-ap0",
	"wlan0", "wlan1",
	"ra0",
}

// SystemStats reads host telemetry from /proc, /sys, and /etc, matching the
// data the dispatcher's Stats collaborator needs.
type SystemStats struct{}

func NewSystemStats() SystemStats { return SystemStats{} }

// ReadMACFromSysfs reads the MAC address of iface from sysfs.
func ReadMACFromSysfs(iface string) (string, error) {
	raw, err := os.ReadFile(fmt.Sprintf("/sys/class/net/%s/address", iface))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// DetectMAC tries a fixed list of OpenWrt interface names and returns the
// first non-zero MAC address found, or "" if none could be read.
func DetectMAC() string {
	for _, iface := range macIfaceCandidates {
		mac, err := ReadMACFromSysfs(iface)
		if err == nil && mac != "" && mac != "00:00:00:00:00:00" {
			return mac
		}
	}
	return ""
}

// MACNoColons strips colon separators: "aa:bb:cc:dd:ee:ff" -> "aabbccddeeff".
func MACNoColons(mac string) string {
	return strings.ReplaceAll(mac, ":", "")
}

// GetOwnIP detects the primary outbound IP by a dummy UDP dial, without
// sending any packet. Falls back to "0.0.0.0".
func GetOwnIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "0.0.0.0"
	}
	defer conn.Close()
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "0.0.0.0"
	}
	return host
}

// GetDefaultGateway parses /proc/net/route for the default route's gateway.
func GetDefaultGateway() string {
	content, err := os.ReadFile("/proc/net/route")
	if err != nil {
		return ""
	}
	return parseDefaultGateway(string(content))
}

func parseDefaultGateway(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 {
		lines = lines[1:] // skip header
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[1] == "00000000" {
			hex, err := strconv.ParseUint(fields[2], 16, 32)
			if err != nil {
				continue
			}
			b0 := byte(hex)
			b1 := byte(hex >> 8)
			b2 := byte(hex >> 16)
			b3 := byte(hex >> 24)
			return fmt.Sprintf("%d.%d.%d.%d", b0, b1, b2, b3)
		}
	}
	return ""
}

// ReadFWVersion reads the firmware version from /etc/openwrt_release's
// DISTRIB_REVISION field, falling back to the plain /etc/openwrt_version.
func (SystemStats) ReadFWVersion() string {
	if content, err := os.ReadFile("/etc/openwrt_release"); err == nil {
		if v := parseOpenwrtRelease(string(content)); v != "" {
			return v
		}
	}
	if content, err := os.ReadFile("/etc/openwrt_version"); err == nil {
		return strings.TrimSpace(string(content))
	}
	return ""
}

func parseOpenwrtRelease(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if rest, ok := strings.CutPrefix(line, "DISTRIB_REVISION="); ok {
			return strings.Trim(strings.Trim(rest, "\""), "'")
		}
	}
	return ""
}

// ReadUptime returns uptime formatted as "Xd Xh Xm Xs" from /proc/uptime.
func (SystemStats) ReadUptime() string {
	content, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return "0d 0h 0m 0s"
	}
	return formatUptime(string(content))
}

func formatUptime(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "0d 0h 0m 0s"
	}
	secsF, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		secsF = 0
	}
	secs := uint64(secsF)
	return fmt.Sprintf("%dd %dh %dm %ds", secs/86400, (secs%86400)/3600, (secs%3600)/60, secs%60)
}

// ReadLoadAvg returns the first three fields of /proc/loadavg.
func (SystemStats) ReadLoadAvg() string {
	content, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return ""
	}
	return parseLoadAvg(string(content))
}

func parseLoadAvg(content string) string {
	fields := strings.Fields(content)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.Join(fields, " ")
}

// ReadFreeMem returns MemFree in kB from /proc/meminfo.
func (SystemStats) ReadFreeMem() string {
	content, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return ""
	}
	return parseFreeMem(string(content))
}

func parseFreeMem(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if rest, ok := strings.CutPrefix(line, "MemFree:"); ok {
			fields := strings.Fields(rest)
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}

// ReadSSID returns the SSID of the first wireless interface via `iw dev`.
func ReadSSID() string {
	out, err := exec.Command("iw", "dev").Output()
	if err != nil {
		return ""
	}
	return parseSSID(string(out))
}

func parseSSID(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "ssid "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// modemIfaceCandidates are checked in order for ReadModemStatus; the
// modem interface is considered up if any of them exists under
// /sys/class/net.
var modemIfaceCandidates = []string{"wwan0", "usb0", "ppp0"}

// ReadModemStatus reports whether a cellular/USB modem interface is
// present on the system.
func (SystemStats) ReadModemStatus() bool {
	for _, iface := range modemIfaceCandidates {
		if _, err := os.Stat(fmt.Sprintf("/sys/class/net/%s", iface)); err == nil {
			return true
		}
	}
	return false
}

// ReadWirelessStatus reports whether wlan0 currently has carrier.
func (SystemStats) ReadWirelessStatus() bool {
	content, err := os.ReadFile("/sys/class/net/wlan0/carrier")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(content)) == "1"
}

// ArpEntry is one complete row from /proc/net/arp.
type ArpEntry struct {
	IP  string
	MAC string
}

// ReadARPTable parses /proc/net/arp, skipping incomplete (all-zero MAC) rows.
func ReadARPTable() []ArpEntry {
	content, err := os.ReadFile("/proc/net/arp")
	if err != nil {
		return nil
	}
	return parseArpTable(string(content))
}

func parseArpTable(content string) []ArpEntry {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 {
		lines = lines[1:] // skip header
	}
	var entries []ArpEntry
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 4 && fields[3] != "00:00:00:00:00:00" {
			entries = append(entries, ArpEntry{IP: fields[0], MAC: fields[3]})
		}
	}
	return entries
}
