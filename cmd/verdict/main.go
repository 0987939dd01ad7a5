// Command verdict runs the claim-verification service: a whitelisted
// constraint DSL, an exact solver, and a multi-engine consensus
// pipeline behind an HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/verdict/core/pkg/api"
	"github.com/Mindburn-Labs/verdict/core/pkg/audit"
	"github.com/Mindburn-Labs/verdict/core/pkg/cache"
	"github.com/Mindburn-Labs/verdict/core/pkg/canonicalize"
	"github.com/Mindburn-Labs/verdict/core/pkg/config"
	"github.com/Mindburn-Labs/verdict/core/pkg/engines"
	"github.com/Mindburn-Labs/verdict/core/pkg/gateway"
	"github.com/Mindburn-Labs/verdict/core/pkg/observability"
	"github.com/Mindburn-Labs/verdict/core/pkg/ratelimit"
	"github.com/Mindburn-Labs/verdict/core/pkg/sandbox"
	"github.com/Mindburn-Labs/verdict/core/pkg/solver"
	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}

	switch args[1] {
	case "server", "serve":
		return runServer(stderr)
	case "solve":
		return runSolveCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			return runServer(stderr)
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "verdict — provably grounded claim verification")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  verdict <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  server   Run the verification server (default)")
	fmt.Fprintln(w, "  solve    Solve a constraint expression from the command line")
	fmt.Fprintln(w, "  help     Show this help")
}

func runServer(stderr io.Writer) int {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		fmt.Fprintf(stderr, "reliability profile: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obsCfg := observability.DefaultConfig()
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.Enabled = cfg.OTLPEndpoint != ""
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	// Audit: durable SQLite sink behind a non-blocking recorder.
	sink, err := audit.OpenSQLiteSink(cfg.AuditDBPath)
	if err != nil {
		logger.Error("audit sink init failed", "error", err, "path", cfg.AuditDBPath)
		return 1
	}
	recorder := audit.NewRecorder(sink, profile.Audit.BufferSize, logger)
	defer func() { _ = recorder.Close() }()

	resultCache := cache.New(profile.Cache.Capacity, profile.Cache.TTL())
	slv := &solver.Solver{Timeout: profile.Solver.Timeout()}

	router, codeEngine, err := buildEngines(ctx, cfg, slv, resultCache, logger)
	if err != nil {
		logger.Error("engine init failed", "error", err)
		return 1
	}
	defer func() { _ = codeEngine.Close(context.Background()) }()

	verifier := verdict.NewVerifier(router,
		verdict.WithScreen(gateway.New(logger)),
		verdict.WithAuditor(recorder),
		verdict.WithWeights(profile.Weights),
		verdict.WithReliability(profile.EngineReliability),
		verdict.WithDigester(taskDigest),
		verdict.WithLogger(logger),
	)

	var limitStore ratelimit.Store
	if cfg.RedisAddr != "" {
		limitStore = ratelimit.DialRedisStore(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), cfg.RedisDB)
		logger.Info("rate limiting via redis", "addr", cfg.RedisAddr)
	} else {
		limitStore = ratelimit.NewMemoryStore()
	}

	srv := api.NewServer(verifier, slv, resultCache, logger)
	handler := api.RequestIDMiddleware(
		obs.HTTPMiddleware(
			api.NewGlobalRateLimiter(100, 200).Middleware(
				api.CallerRateLimit(limitStore, profile.RateLimit.Policy(), srv.Routes()))))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
	}
	return 0
}

// buildEngines registers the verification strategies in routing order:
// the exact solver first, then the independent cross-check engines.
func buildEngines(ctx context.Context, cfg *config.Config, slv *solver.Solver, c *cache.Cache, logger *slog.Logger) (*verdict.Router, *engines.CodeEngine, error) {
	router := verdict.NewRouter()
	router.Register(engines.NewLogicEngine(slv, c, logger))

	mathEngine, err := engines.NewMathEngine(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("math engine: %w", err)
	}
	router.Register(mathEngine)
	router.Register(engines.NewStatsEngine())

	if cfg.FactsPath != "" {
		facts, err := engines.LoadYAMLFactStore(cfg.FactsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("fact store: %w", err)
		}
		router.Register(engines.NewFactEngine(facts))
	}

	codeEngine := engines.NewCodeEngine(ctx, sandbox.DefaultConfig(), logger)
	router.Register(codeEngine)
	return router, codeEngine, nil
}

// taskDigest is the stable audit identity of a task: its canonical JSON
// form, hashed.
func taskDigest(task verdict.Task) string {
	digest, err := canonicalize.CanonicalHash(task)
	if err != nil {
		return ""
	}
	return digest
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
