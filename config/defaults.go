package config

import "time"

// Default runtime limits and guardrails for the MCP Tabular Finance Analysis
// Server. These values are conservative and can be overridden by future
// configuration mechanisms (env, CLI, or files). They are referenced by
// internal/runtime and the operation handlers.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10

	// Row and result bounds
	DefaultMaxRows          = 20 // cap for any rendered tabular result
	DefaultHeadRows         = 5  // default rows for get_head
	DefaultMaxSearchResults = 10 // hard clamp for similarity_search k
	DefaultSearchResults    = 3

	// Dispatcher guard: identical malformed payloads rejected outright
	// after this many recorded failures.
	DefaultRepeatedErrorLimit = 3
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultRateFetchTimeout      = 10 * time.Second
)

const (
	// Currency conversion
	RateAPIBaseURL       = "https://api.freecurrencyapi.com/v1/latest"
	RateAPIKeyEnv        = "FREE_CURRENCY_API_KEY"
	DefaultRateCacheFile = "currency_request.json"
	DefaultBaseCurrency  = "USD"
)

// SupportedCurrencies is the fixed set fetched from the rate API. The base
// currency of a fetch must be one of these codes.
var SupportedCurrencies = []string{"EUR", "USD", "TRY"}

// FloatEqTolerance is the symmetric tolerance applied when an equality
// filter targets a floating-point literal.
const FloatEqTolerance = 1e-6
