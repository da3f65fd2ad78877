// Command usp-agent is the TR-369 USP Agent daemon for OpenWrt access-point
// devices.
//
// Usage:
//
//	usp-agent --config /etc/apclient/ac_client.conf
//	usp-agent --config /etc/apclient/ac_client.conf --stderr
//	usp-agent --uci
package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/optimacs/usp-agent/internal/config"
	"github.com/optimacs/usp-agent/internal/debugserver"
	"github.com/optimacs/usp-agent/internal/health"
	"github.com/optimacs/usp-agent/internal/logger"
	"github.com/optimacs/usp-agent/internal/platform"
	"github.com/optimacs/usp-agent/internal/supervisor"
	"github.com/optimacs/usp-agent/internal/usp/dm"
	"github.com/optimacs/usp-agent/internal/usp/endpoint"
	"github.com/optimacs/usp-agent/internal/usp/engine"
	"github.com/optimacs/usp-agent/internal/usp/mtp/mqttmtp"
	"github.com/optimacs/usp-agent/internal/usp/mtp/wsmtp"
)

const appName = "usp-agent"

const restartDelay = 30 * time.Second

var (
	configPath = flag.String("config", "/etc/apclient/ac_client.conf", "path to the flat key=value configuration file")
	useUCI     = flag.Bool("uci", false, "read configuration from UCI (optimacs.agent) instead of the flat config file")
	toStderr   = flag.Bool("stderr", false, "log to stderr instead of syslog")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: config error: %v\n", appName, err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s: config validation: %v\n", appName, err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Syslog:  cfg.LogSyslog && !*toStderr,
		Console: *toStderr,
		Level:   "info",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: logger init: %v\n", appName, err)
		os.Exit(1)
	}
	log = log.With().Str("app", appName).Logger()

	if err := writePIDFile(cfg.PIDFile); err != nil {
		log.Error().Err(err).Str("path", cfg.PIDFile).Msg("cannot write PID file")
	}

	if cfg.MACAddr == "" {
		mac := platform.DetectMAC()
		if mac == "" {
			log.Error().Msg("mac_addr not configured and auto-detection failed")
			log.Error().Msg("set it explicitly: uci set optimacs.agent.mac_addr='<mac>'; uci commit optimacs")
			os.Exit(1)
		}
		log.Info().Str("mac", mac).Msg("auto-detected MAC address")
		cfg.MACAddr = mac
	}
	cfg.WSURL = config.ResolveWSURL(cfg)

	log.Info().Str("mtp", cfg.MTP.String()).Msg("usp-agent starting")

	agentID := endpoint.FromMAC("00005A", cfg.MACAddr)
	if cfg.USPEndpointID != "" {
		agentID = endpoint.ID(cfg.USPEndpointID)
	}
	controllerID := endpoint.ID(cfg.ControllerID)
	log.Info().Str("endpoint_id", agentID.String()).Msg("USP Agent identity")

	tlsCfg, err := platform.NewClientTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile, cfg.ServerCN)
	if err != nil {
		log.Error().Err(err).Msg("FATAL: TLS configuration failed")
		os.Exit(1)
	}

	dispatcher := &dm.Dispatcher{
		Identity: dm.Identity{SysModel: cfg.SysModel, MACAddr: cfg.MACAddr},
		FWDir:    cfg.FWDir,
		InitCert: cfg.InitCert,
		Stats:    platform.NewSystemStats(),
		UCI:      platform.NewUCI(),
		Camera:   platform.NewCameraScanner(),
		Firmware: platform.NewFirmware(),
		Cert:     platform.NewCertFileReader(),
	}

	eng := engine.New(dispatcher, engine.NewVersionCell(), log)
	eng.Position = platform.NewPositionStore()
	eng.Network = platform.NewSystemStats()

	mtps, activeMTPs := buildMTPClients(cfg, agentID, controllerID, tlsCfg, eng, log)

	sup := supervisor.New(mtps, eng, time.Duration(cfg.StatusInterval)*time.Second, log)
	sup.Health = health.New(health.Config{CheckInterval: time.Minute})

	bootTime := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DebugPasswordHash != "" && cfg.DebugPort > 0 {
		hub := debugserver.NewHub()
		sup.EventSink = hub
		auth := debugserver.NewAuthService(cfg.DebugPasswordHash, randomSecret(), time.Hour)
		status := statusProvider{engine: eng, activeMTPs: activeMTPs, bootTime: bootTime, health: sup.Health}
		dbg := debugserver.New(debugserver.Config{
			Port:   cfg.DebugPort,
			Auth:   auth,
			Status: status,
			Hub:    hub,
			Logger: log,
		})
		go func() {
			if err := dbg.Start(ctx); err != nil {
				log.Error().Err(err).Msg("debug console exited")
			}
		}()
		log.Info().Int("port", cfg.DebugPort).Msg("debug console listening on loopback")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Stringer("signal", sig).Msg("shutting down")
		cancel()
	}()

	runWithOuterRestart(ctx, sup, log)
}

// runWithOuterRestart mirrors the daemon's top-level restart-on-exit loop:
// Supervisor.Run only returns once every MTP goroutine has exited, which in
// normal operation only happens on ctx cancellation. If it ever returns
// early the whole agent is restarted after a fixed delay.
func runWithOuterRestart(ctx context.Context, sup *supervisor.Supervisor, log zerolog.Logger) {
	for {
		sup.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Error().Dur("delay", restartDelay).Msg("usp agent exited; restarting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

func loadConfig() (config.Config, error) {
	if *useUCI {
		return config.LoadUCI(context.Background(), "optimacs")
	}
	return config.LoadFile(*configPath)
}

// buildMTPClients constructs the wsmtp/mqttmtp clients selected by
// cfg.MTP, returning them alongside the human-readable names of the active
// transports for the debug console's /status endpoint.
func buildMTPClients(cfg config.Config, agentID, controllerID endpoint.ID, tlsCfg *tls.Config, eng *engine.Engine, log zerolog.Logger) ([]supervisor.MTPClient, []string) {
	var mtps []supervisor.MTPClient
	var names []string

	if cfg.MTP == config.MTPWebSocket || cfg.MTP == config.MTPBoth {
		mtps = append(mtps, wsmtp.New(cfg.WSURL, agentID, controllerID, tlsCfg, eng, log))
		names = append(names, "websocket")
	}
	if cfg.MTP == config.MTPMqtt || cfg.MTP == config.MTPBoth {
		mtps = append(mtps, mqttmtp.New(cfg.MQTTURL, agentID, controllerID, tlsCfg, eng, log))
		names = append(names, "mqtt")
	}
	return mtps, names
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// statusProvider adapts the engine and configured MTPs to
// debugserver.StatusProvider.
type statusProvider struct {
	engine     *engine.Engine
	activeMTPs []string
	bootTime   time.Time
	health     *health.HealthCheck
}

func (s statusProvider) Status() debugserver.Status {
	st := debugserver.Status{
		Version:      s.engine.Version.Get(),
		ActiveMTPs:   s.activeMTPs,
		LastBootTime: s.bootTime,
		Healthy:      true,
	}
	if s.health == nil {
		return st
	}
	h := s.health.Status()
	st.Healthy = h.Healthy
	st.MessagesProcessed = h.MessagesProcessed
	st.ErrorCount = h.ErrorCount
	st.LastError = h.LastError
	st.Components = make(map[string]string, len(h.ComponentStatus))
	for name, c := range h.ComponentStatus {
		st.Components[name] = c.Message
	}
	return st
}
