// Package sandbox executes untrusted WASM programs under wazero with
// deny-by-default capabilities: no filesystem, no network, no
// environment, memory capped, CPU bounded by context deadline. The
// program reads its input on stdin and writes its answer to stdout.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Config bounds one sandbox instance.
type Config struct {
	// MemoryLimitBytes caps linear memory. Zero means the wazero default.
	MemoryLimitBytes uint64
	// CPUTimeLimit bounds one execution. Zero disables the bound.
	CPUTimeLimit time.Duration
	// MaxOutputBytes caps stdout; larger output fails the run.
	MaxOutputBytes int
}

// DefaultConfig is suitable for short verification programs.
func DefaultConfig() Config {
	return Config{
		MemoryLimitBytes: 64 << 20,
		CPUTimeLimit:     5 * time.Second,
		MaxOutputBytes:   1 << 20,
	}
}

// Sandbox runs WASM modules in isolation. Safe for concurrent use; each
// Run instantiates a fresh module.
type Sandbox struct {
	runtime wazero.Runtime
	cfg     Config
}

// New builds a sandbox runtime with the configured memory ceiling. Only
// WASI stdio is instantiated; no filesystem mounts, no clock or random
// sources beyond wazero's inert defaults.
func New(ctx context.Context, cfg Config) *Sandbox {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitBytes > 0 {
		pages := uint32(cfg.MemoryLimitBytes / (64 * 1024))
		if pages == 0 {
			pages = 1
		}
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(pages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	return &Sandbox{runtime: r, cfg: cfg}
}

// Run compiles and executes wasm with input on stdin, returning stdout.
// Any stderr output marks the run failed: verification programs must be
// silent on success.
func (s *Sandbox) Run(ctx context.Context, wasm, input []byte) ([]byte, error) {
	if s.cfg.CPUTimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CPUTimeLimit)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_start").
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	compiled, err := s.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("sandbox: compilation failed: %w", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	mod, err := s.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sandbox: execution timed out after %v", s.cfg.CPUTimeLimit)
		}
		return nil, fmt.Errorf("sandbox: execution failed: %w", err)
	}
	defer func() { _ = mod.Close(ctx) }()

	if stderr.Len() > 0 {
		return nil, fmt.Errorf("sandbox: program error: %s", stderr.String())
	}
	if s.cfg.MaxOutputBytes > 0 && stdout.Len() > s.cfg.MaxOutputBytes {
		return nil, fmt.Errorf("sandbox: output exceeds %d bytes", s.cfg.MaxOutputBytes)
	}
	return stdout.Bytes(), nil
}

// Close shuts the runtime down, releasing compiled module caches.
func (s *Sandbox) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.runtime.Close(ctx)
}
