// Package gateway screens inbound verification tasks before any engine,
// cache or solver touches them. The gateway is fail-closed: anything it
// cannot positively clear is rejected, and rejection reasons are coded
// so the boundary can answer with BLOCKED rather than a generic error.
package gateway

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// Input size ceilings. Oversized input is rejected outright instead of
// being truncated, since truncation could change a claim's meaning.
const (
	MaxQueryBytes = 8 << 10
	MaxDSLBytes   = 16 << 10
	MaxCodeBytes  = 4 << 20
)

// injectionPatterns are screened against the NFC-normalized, lowercased
// query text. Matching any one of them blocks the request.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`disregard\s+(the\s+)?(system|above)`),
	regexp.MustCompile(`you\s+are\s+now\s+`),
	regexp.MustCompile(`reveal\s+(the\s+)?system\s+prompt`),
	regexp.MustCompile(`__import__`),
	regexp.MustCompile(`\beval\s*\(`),
	regexp.MustCompile(`\bexec\s*\(`),
	regexp.MustCompile(`\bos\.system\b`),
	regexp.MustCompile(`\bsubprocess\b`),
	regexp.MustCompile(`;\s*(drop|delete|truncate)\s+table`),
	regexp.MustCompile("[`$]\\("),
}

// Gateway implements the pre-execution security screen.
type Gateway struct {
	log *slog.Logger
}

// New builds a Gateway. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{log: log}
}

// Inspect screens one task. A non-nil return is always a coded
// GATEWAY/BLOCKED error; the detail names what tripped, never echoes
// attacker-controlled text back verbatim beyond the matched category.
func (g *Gateway) Inspect(ctx context.Context, task verdict.Task) error {
	if len(task.Query) > MaxQueryBytes {
		return verdict.NewError(verdict.CodeGatewayBlocked, "query exceeds %d bytes", MaxQueryBytes)
	}
	if len(task.DSL) > MaxDSLBytes {
		return verdict.NewError(verdict.CodeGatewayBlocked, "dsl exceeds %d bytes", MaxDSLBytes)
	}
	if len(task.Code) > MaxCodeBytes {
		return verdict.NewError(verdict.CodeGatewayBlocked, "code exceeds %d bytes", MaxCodeBytes)
	}

	// Unicode normalization first, so visually equivalent sequences
	// cannot smuggle a pattern past the byte-level match.
	query := strings.ToLower(norm.NFC.String(task.Query))
	for _, pat := range injectionPatterns {
		if pat.MatchString(query) {
			g.log.WarnContext(ctx, "gateway blocked query", "pattern", pat.String())
			return verdict.NewError(verdict.CodeGatewayBlocked, "query matches injection pattern")
		}
	}

	if containsControlBytes(task.DSL) {
		return verdict.NewError(verdict.CodeGatewayBlocked, "dsl contains control bytes")
	}
	return nil
}

// containsControlBytes reports non-whitespace control characters. The
// DSL grammar is printable ASCII plus whitespace; everything else is
// outside it and fails closed here before the parser sees it.
func containsControlBytes(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' {
			return true
		}
	}
	return false
}
