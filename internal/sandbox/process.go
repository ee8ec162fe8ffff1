package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gustaf30/nexus/internal/plugin"
)

// configEnvVar is the environment variable a TypeScript plugin reads its
// config blob from. Passing config through the environment instead of
// argv keeps credentials out of the process table.
const configEnvVar = "NEXUS_CONFIG"

// ProcessPlugin runs an external TypeScript plugin through a cold-started
// Deno subprocess per invocation. The plugin module must export
// `poll(configJson)` and `checkConnection(configJson)` async functions
// returning JSON strings. A fresh process per call guarantees no state
// leaks between invocations or between sources.
type ProcessPlugin struct {
	sourceID string
	path     string
	denoBin  string
}

// NewProcessPlugin creates a plugin backed by the TypeScript module at
// path. The source identifier is the file stem (plugins/github.ts serves
// source "github").
func NewProcessPlugin(path string) *ProcessPlugin {
	base := filepath.Base(path)
	return &ProcessPlugin{
		sourceID: strings.TrimSuffix(base, filepath.Ext(base)),
		path:     path,
		denoBin:  "deno",
	}
}

// DiscoverProcessPlugins scans dir for *.ts plugin modules and returns a
// plugin per file. A missing directory yields no plugins and no error.
func DiscoverProcessPlugins(dir string) ([]plugin.Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plugins dir %s: %w", dir, err)
	}

	var plugins []plugin.Plugin
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".ts" {
			continue
		}
		plugins = append(plugins, NewProcessPlugin(filepath.Join(dir, entry.Name())))
	}
	return plugins, nil
}

// Source returns the source identifier this plugin serves.
func (p *ProcessPlugin) Source() string {
	return p.sourceID
}

// Poll invokes the plugin's exported poll function.
func (p *ProcessPlugin) Poll(ctx context.Context, config []byte) ([]byte, error) {
	return p.invoke(ctx, "poll", config)
}

// CheckConnection invokes the plugin's exported checkConnection function.
func (p *ProcessPlugin) CheckConnection(ctx context.Context, config []byte) ([]byte, error) {
	return p.invoke(ctx, "checkConnection", config)
}

// invoke evaluates a small driver script that imports the named export,
// calls it with the config blob, and prints the returned JSON to stdout.
// The subprocess gets network access only: no filesystem or subprocess
// permissions are granted.
func (p *ProcessPlugin) invoke(ctx context.Context, function string, config []byte) ([]byte, error) {
	abs, err := filepath.Abs(p.path)
	if err != nil {
		return nil, fmt.Errorf("resolving plugin path %s: %w", p.path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("plugin module %s: %w", abs, err)
	}

	moduleURL := url.URL{Scheme: "file", Path: abs}
	script := fmt.Sprintf(
		`import { %s } from %q;
const result = await %s(Deno.env.get(%q) ?? "{}");
console.log(result);`,
		function, moduleURL.String(), function, configEnvVar,
	)

	cmd := exec.CommandContext(ctx, p.denoBin,
		"eval", "--allow-net", fmt.Sprintf("--allow-env=%s", configEnvVar), script)
	cmd.Env = append(os.Environ(), configEnvVar+"="+string(config))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("plugin %s %s failed: %s", p.sourceID, function, msg)
	}

	return bytes.TrimSpace(stdout.Bytes()), nil
}
