package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// moduleWithImport hand-encodes a minimal WASM module importing one
// function of type () -> () from the given module/name pair.
func moduleWithImport(mod, name string) []byte {
	b := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00} // magic + version
	b = append(b, 0x01, 0x04, 0x01, 0x60, 0x00, 0x00)           // type section: () -> ()

	imp := []byte{0x01}
	imp = append(imp, byte(len(mod)))
	imp = append(imp, mod...)
	imp = append(imp, byte(len(name)))
	imp = append(imp, name...)
	imp = append(imp, 0x00, 0x00) // func import, type index 0

	b = append(b, 0x02, byte(len(imp)))
	return append(b, imp...)
}

func emptyModule() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func TestAnalyze_EmptyModuleClean(t *testing.T) {
	ctx := context.Background()
	a := NewAnalyzer(ctx)
	defer a.Close(ctx)

	report, err := a.Analyze(ctx, emptyModule())
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
	assert.False(t, report.Blocked())
}

func TestAnalyze_ImportGrading(t *testing.T) {
	ctx := context.Background()
	a := NewAnalyzer(ctx)
	defer a.Close(ctx)

	tests := []struct {
		name     string
		mod      string
		fn       string
		severity Severity
		blocked  bool
	}{
		{name: "stdout write", mod: "wasi_snapshot_preview1", fn: "fd_write", severity: SeverityInfo},
		{name: "environment read", mod: "wasi_snapshot_preview1", fn: "environ_get", severity: SeverityWarning},
		{name: "filesystem open", mod: "wasi_snapshot_preview1", fn: "path_open", severity: SeverityCritical, blocked: true},
		{name: "network socket", mod: "wasi_snapshot_preview1", fn: "sock_recv", severity: SeverityCritical, blocked: true},
		{name: "unknown wasi call", mod: "wasi_snapshot_preview1", fn: "proc_raise", severity: SeverityCritical, blocked: true},
		{name: "non-wasi host import", mod: "env", fn: "system", severity: SeverityCritical, blocked: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := a.Analyze(ctx, moduleWithImport(tt.mod, tt.fn))
			require.NoError(t, err)
			require.Len(t, report.Findings, 1)
			assert.Equal(t, tt.severity, report.Findings[0].Severity)
			assert.Equal(t, tt.mod+"."+tt.fn, report.Findings[0].Capability)
			assert.Equal(t, tt.blocked, report.Blocked())
		})
	}
}

func TestAnalyze_InvalidModule(t *testing.T) {
	ctx := context.Background()
	a := NewAnalyzer(ctx)
	defer a.Close(ctx)

	_, err := a.Analyze(ctx, []byte("definitely not wasm"))
	assert.Error(t, err)
}
