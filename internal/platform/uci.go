package platform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// UCI shells out to the OpenWrt `uci` binary for config get/set/commit/show.
type UCI struct{}

func NewUCI() UCI { return UCI{} }

func (UCI) Get(ctx context.Context, path string) string {
	out, err := exec.CommandContext(ctx, "uci", "get", path).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func (UCI) Set(ctx context.Context, path, value string) error {
	cmd := exec.CommandContext(ctx, "uci", "set", fmt.Sprintf("%s=%s", path, value))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("uci set %s failed: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (UCI) Commit(ctx context.Context, pkg string) error {
	cmd := exec.CommandContext(ctx, "uci", "commit", pkg)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("uci commit %s failed: %w (%s)", pkg, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (UCI) Show(ctx context.Context, pkg string) string {
	out, err := exec.CommandContext(ctx, "uci", "show", pkg).Output()
	if err != nil {
		return ""
	}
	return string(out)
}
