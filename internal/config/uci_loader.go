package config

import (
	"context"
	"os/exec"
	"strings"
)

// LoadUCI populates a Config from the OpenWrt UCI database, for devices
// started with the --uci flag instead of a flat config file. It shells out
// to `uci show <pkg>` and parses the same key names as LoadFile.
func LoadUCI(ctx context.Context, pkg string) (Config, error) {
	cfg := Default()
	out, err := exec.CommandContext(ctx, "uci", "show", pkg).Output()
	if err != nil {
		return Config{}, err
	}
	for _, line := range strings.Split(string(out), "\n") {
		applyUCILine(&cfg, pkg, line)
	}
	return cfg, nil
}

// applyUCILine handles one line of `uci show <pkg>` output, of the form
// apclient.@section[0].key='value'.
func applyUCILine(cfg *Config, pkg, line string) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, pkg+".") {
		return
	}
	lhs, val, found := strings.Cut(line, "=")
	if !found {
		return
	}
	idx := strings.LastIndex(lhs, ".")
	if idx < 0 {
		return
	}
	key := strings.ToLower(lhs[idx+1:])
	val = strings.Trim(val, "'")
	if val == "" {
		return
	}
	setField(cfg, key, val)
}
