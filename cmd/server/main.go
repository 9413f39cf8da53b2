package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/oterdem/mcptab/config"
	"github.com/oterdem/mcptab/internal/ops"
	"github.com/oterdem/mcptab/internal/rates"
	"github.com/oterdem/mcptab/internal/registry"
	"github.com/oterdem/mcptab/internal/runtime"
	"github.com/oterdem/mcptab/internal/security"
	"github.com/oterdem/mcptab/internal/tabular"
	"github.com/oterdem/mcptab/internal/telemetry"
	"github.com/oterdem/mcptab/internal/vector"
	"github.com/oterdem/mcptab/pkg/validation"
	"github.com/oterdem/mcptab/pkg/version"
)

// options are the startup parameters, validated before anything touches disk.
type options struct {
	DataPath      string `validate:"required,notblank,dataset_ext"`
	BaseCurrency  string `validate:"currency_code"`
	RateCachePath string `validate:"required,notblank"`
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Optional .env for FREE_CURRENCY_API_KEY, OPENAI_API_KEY, CHROMA_URL.
	_ = godotenv.Load()

	var (
		useStdio      bool
		dataPath      string
		rateCachePath string
		baseCurrency  string
		allowFallback bool
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	flag.StringVar(&dataPath, "data", "", "Path to the dataset file (.csv or .xlsx)")
	flag.StringVar(&rateCachePath, "rate-cache", config.DefaultRateCacheFile, "Path to the exchange-rate cache slot")
	flag.StringVar(&baseCurrency, "base-currency", config.DefaultBaseCurrency, "Default base currency for rate fetches")
	flag.BoolVar(&allowFallback, "allow-raw-filter", false, "Allow raw filter expressions when the condition grammar does not match")
	flag.Parse()

	logger := zlog.With().Str("service", "mcptab-server").Logger()
	ctx := logger.WithContext(context.Background())

	opts := options{DataPath: dataPath, BaseCurrency: baseCurrency, RateCachePath: rateCachePath}
	if msg := validation.ValidateStruct(opts); msg != "" {
		logger.Error().Str("detail", msg).Msg("invalid startup options")
		fmt.Fprintln(os.Stderr, msg+"; use --data <path.csv|path.xlsx>")
		os.Exit(1)
	}

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager from env")
		fmt.Fprintln(os.Stderr, "invalid security configuration; set MCPTAB_ALLOWED_DIRS")
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintln(os.Stderr, "no allowed directories configured; set MCPTAB_ALLOWED_DIRS")
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	canonicalData, err := secMgr.ValidateOpenPath(opts.DataPath)
	if err != nil {
		logger.Error().Err(err).Str("path", opts.DataPath).Msg("dataset path rejected")
		fmt.Fprintln(os.Stderr, "dataset path rejected:", err)
		os.Exit(1)
	}
	table, err := tabular.Load(canonicalData)
	if err != nil {
		logger.Error().Err(err).Str("path", canonicalData).Msg("dataset load failed")
		fmt.Fprintln(os.Stderr, "dataset load failed:", err)
		os.Exit(1)
	}
	store := tabular.NewStore(table)
	logger.Info().Int("rows", table.NumRows()).Int("cols", table.NumCols()).Msg("dataset loaded")

	cachePath, err := secMgr.ValidateWritePath(opts.RateCachePath)
	if err != nil {
		logger.Error().Err(err).Str("path", opts.RateCachePath).Msg("rate cache path rejected")
		fmt.Fprintln(os.Stderr, "rate cache path rejected:", err)
		os.Exit(1)
	}

	limits := runtime.NewLimits(config.DefaultMaxConcurrentRequests, config.DefaultMaxRows)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	// Vector index is optional: without a Chroma endpoint the search tool
	// reports NO_INDEX instead of failing startup.
	var searcher vector.Searcher
	if chromaURL := os.Getenv("CHROMA_URL"); chromaURL != "" {
		idx, err := vector.BuildIndex(ctx, chromaURL, canonicalData)
		if err != nil {
			logger.Warn().Err(err).Msg("vector index unavailable; similarity_search disabled")
		} else {
			searcher = idx
			logger.Info().Str("chroma_url", chromaURL).Msg("vector index ready")
		}
	}

	dispatcher := ops.NewDispatcher(logger, limits.RepeatedErrorLimit)
	(&ops.Inspector{Store: store, Limits: limits}).RegisterActions(dispatcher)
	(&ops.Filter{Store: store, Limits: limits, AllowFallback: allowFallback}).RegisterActions(dispatcher)
	(&ops.Aggregator{Store: store, Limits: limits}).RegisterActions(dispatcher)
	(&ops.Currency{
		Store:   store,
		Limits:  limits,
		Fetcher: rates.NewClient("", os.Getenv(config.RateAPIKeyEnv), nil),
		Cache:   rates.NewCache(cachePath),
		Logger:  logger,
	}).RegisterActions(dispatcher)
	(&ops.Reporter{Store: store, Limits: limits}).RegisterActions(dispatcher)
	(&ops.Search{Index: searcher, Limits: limits, Default: config.DefaultSearchResults}).RegisterActions(dispatcher)

	toolRegistry := registry.New()

	srv := server.NewMCPServer(
		"MCP Tabular Finance Analysis Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(buildHooks(logger)),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
	)

	registry.RegisterAnalysisTools(srv, toolRegistry, dispatcher)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_rows", limits.MaxRows).
		Int("model_context_size", toolRegistry.ModelContextSize("gpt-4o")).
		Strs("actions", dispatcher.Actions()).
		Bool("raw_filter_fallback", allowFallback).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if useStdio {
		lifecycle := telemetry.NewHooks(logger)
		lifecycle.OnServerStart()
		err := server.ServeStdio(srv)
		lifecycle.OnServerStop()
		if err != nil {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
	os.Exit(2)
}

// buildHooks constructs mcp-go server hooks for basic telemetry.
func buildHooks(logger zerolog.Logger) *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		logger.Info().Str("session_id", session.SessionID()).Msg("session registered")
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		logger.Info().Str("session_id", session.SessionID()).Msg("session unregistered")
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		logger.Info().Str("tool", req.Params.Name).Msg("tool call served")
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}
