// Package config parses the Agent's flat key=value configuration file (or
// its UCI equivalent) into a Config struct.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultPort           = 3490
	defaultStatusInterval = 300
	defaultCamInterval    = 360
	defaultUpdateInterval = 60
	defaultGNSSBaud       = 9600
)

// MTPType selects which transport(s) the supervisor starts.
type MTPType int

const (
	MTPWebSocket MTPType = iota
	MTPMqtt
	MTPBoth
)

func (t MTPType) String() string {
	switch t {
	case MTPMqtt:
		return "mqtt"
	case MTPBoth:
		return "both"
	default:
		return "websocket"
	}
}

// Config is the full Agent configuration.
type Config struct {
	ServerHost string
	ServerPort uint16
	ServerCN   string
	CAFile     string
	CertFile   string
	KeyFile    string
	InitCert   string
	InitKey    string
	CertDir    string

	MACAddr  string
	Arch     string
	SysModel string

	GNSSDev  string
	GNSSBaud uint32

	UpdateInterval uint64
	StatusInterval uint64
	CamInterval    uint64

	FWDir  string
	ImgDir string

	PIDFile    string
	Daemonize  bool
	LogSyslog  bool

	USPEndpointID string
	ControllerID  string
	WSURL         string
	MQTTURL       string
	MTP           MTPType

	DebugPort         int
	DebugPasswordHash string
}

// Default returns a Config populated with the Agent's built-in defaults.
func Default() Config {
	return Config{
		ServerPort:     defaultPort,
		ServerCN:       "ac-server",
		CAFile:         "/etc/apclient/ca.crt",
		CertFile:       "/etc/apclient/client.crt",
		KeyFile:        "/etc/apclient/client.key",
		InitCert:       "/etc/apclient/init/client.crt",
		InitKey:        "/etc/apclient/init/client.key",
		CertDir:        "/etc/apclient",
		GNSSBaud:       defaultGNSSBaud,
		UpdateInterval: defaultUpdateInterval,
		StatusInterval: defaultStatusInterval,
		CamInterval:    defaultCamInterval,
		FWDir:          "/tmp/firmware",
		ImgDir:         "/tmp/cam",
		PIDFile:        "/var/run/apclient.pid",
		LogSyslog:      true,
		ControllerID:   "oui:00005A:OptimACS-Controller-1",
		MTP:            MTPWebSocket,
		DebugPort:      8732,
	}
}

// LoadFile parses a flat key=value configuration file.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: cannot read %s: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		applyLine(&cfg, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

func applyLine(cfg *Config, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	key, val, found := strings.Cut(line, "=")
	if !found {
		return
	}
	key = strings.ToLower(strings.TrimSpace(key))
	val = strings.TrimSpace(val)
	if val == "" {
		return
	}
	setField(cfg, key, val)
}

func setField(cfg *Config, key, val string) {
	switch key {
	case "server_host":
		cfg.ServerHost = val
	case "server_port":
		cfg.ServerPort = parseUint16(val, defaultPort)
	case "server_cn":
		cfg.ServerCN = val
	case "ca_file":
		cfg.CAFile = val
	case "cert_file":
		cfg.CertFile = val
	case "key_file":
		cfg.KeyFile = val
	case "init_cert":
		cfg.InitCert = val
	case "init_key":
		cfg.InitKey = val
	case "cert_dir":
		cfg.CertDir = val
	case "mac_addr":
		cfg.MACAddr = val
	case "arch":
		cfg.Arch = val
	case "sys_model":
		cfg.SysModel = val
	case "gnss_dev":
		cfg.GNSSDev = val
	case "gnss_baud":
		cfg.GNSSBaud = uint32(parseUint64(val, defaultGNSSBaud))
	case "update_interval":
		cfg.UpdateInterval = parseUint64(val, defaultUpdateInterval)
	case "status_interval":
		cfg.StatusInterval = parseUint64(val, defaultStatusInterval)
	case "cam_interval":
		cfg.CamInterval = parseUint64(val, defaultCamInterval)
	case "fw_dir":
		cfg.FWDir = val
	case "img_dir":
		cfg.ImgDir = val
	case "pid_file":
		cfg.PIDFile = val
	case "daemonize":
		cfg.Daemonize = parseBool(val)
	case "log_syslog":
		cfg.LogSyslog = parseBool(val)
	case "usp_endpoint_id":
		cfg.USPEndpointID = val
	case "controller_id":
		cfg.ControllerID = val
	case "ws_url":
		cfg.WSURL = val
	case "mqtt_url":
		cfg.MQTTURL = val
	case "mtp":
		cfg.MTP = parseMTP(val)
	case "debug_port":
		cfg.DebugPort = int(parseUint64(val, uint64(cfg.DebugPort)))
	case "debug_password_hash":
		cfg.DebugPasswordHash = val
	}
}

func parseMTP(val string) MTPType {
	switch strings.ToLower(val) {
	case "mqtt":
		return MTPMqtt
	case "both":
		return MTPBoth
	default:
		return MTPWebSocket
	}
}

func parseBool(val string) bool {
	return val == "true" || val == "1" || val == "yes"
}

func parseUint16(val string, fallback uint16) uint16 {
	n, err := strconv.ParseUint(val, 10, 16)
	if err != nil {
		return fallback
	}
	return uint16(n)
}

func parseUint64(val string, fallback uint64) uint64 {
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// Validate checks that the fields required for the configured MTP are set.
func Validate(cfg Config) error {
	if cfg.CAFile == "" {
		return fmt.Errorf("config: ca_file is required")
	}
	switch cfg.MTP {
	case MTPWebSocket, MTPBoth:
		if cfg.WSURL == "" && cfg.ServerHost == "" {
			return fmt.Errorf("config: ws_url (or server_host) is required for WebSocket MTP")
		}
	case MTPMqtt:
		if cfg.MQTTURL == "" {
			return fmt.Errorf("config: mqtt_url is required for MQTT MTP")
		}
	}
	return nil
}

// ResolveWSURL derives ws_url from server_host/server_port when not set
// explicitly.
func ResolveWSURL(cfg Config) string {
	if cfg.WSURL != "" {
		return cfg.WSURL
	}
	if cfg.ServerHost == "" {
		return ""
	}
	return fmt.Sprintf("wss://%s:%d/usp", cfg.ServerHost, cfg.ServerPort)
}
