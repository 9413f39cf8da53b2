package mcperr

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation    Code = "VALIDATION"
	UnknownAction Code = "UNKNOWN_ACTION"
	ParseFailed   Code = "PARSE_FAILED"
	RepeatedError Code = "REPEATED_ERROR"

	// Schema
	UnknownColumn Code = "UNKNOWN_COLUMN"

	// Missing resource
	NoTable  Code = "NO_TABLE"
	NoIndex  Code = "NO_INDEX"
	NoRates  Code = "NO_RATES"

	// Protocol
	NotGrouped Code = "NOT_GROUPED"

	// Resource & Limits
	BusyResource  Code = "BUSY_RESOURCE"
	Timeout       Code = "TIMEOUT"
	LimitExceeded Code = "LIMIT_EXCEEDED"

	// Operations
	FilterFailed      Code = "FILTER_FAILED"
	AggregationFailed Code = "AGGREGATION_FAILED"
	MergeFailed       Code = "MERGE_FAILED"
	SearchFailed      Code = "SEARCH_FAILED"
	ReportFailed      Code = "REPORT_FAILED"

	// External
	RateFetchFailed Code = "RATE_FETCH_FAILED"
	LoadFailed      Code = "LOAD_FAILED"

	// Integrity
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
)

// Entry documents a code's standard message, retry semantics, and next steps.
// Transient marks failures that originate outside the caller's input (busy
// server, timeout, external API outage) and can clear without the input
// changing.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	Transient bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:    {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry", "See examples in tool description"}},
	UnknownAction: {Code: UnknownAction, Message: "action not recognized", Retryable: true, NextSteps: []string{"Use one of the actions listed in the tool description"}},
	ParseFailed:   {Code: ParseFailed, Message: "payload or condition could not be parsed", Retryable: true, NextSteps: []string{"Send well-formed JSON with 'action' and 'params'", "Quote column names containing spaces with backticks"}},
	RepeatedError: {Code: RepeatedError, Message: "identical input already failed repeatedly", Retryable: false, NextSteps: []string{"Change the input instead of resending it", "Call get_column_names or get_info to re-ground parameters"}},

	UnknownColumn: {Code: UnknownColumn, Message: "referenced column not found", Retryable: true, NextSteps: []string{"Call get_column_names and use an exact column name"}},

	NoTable: {Code: NoTable, Message: "no dataset loaded", Retryable: false, NextSteps: []string{"Load a dataset before calling data tools"}},
	NoIndex: {Code: NoIndex, Message: "vector index not configured", Retryable: false, NextSteps: []string{"Start the server with an embedding index to enable similarity_search"}},
	NoRates: {Code: NoRates, Message: "no exchange-rate snapshot available", Retryable: true, NextSteps: []string{"Call get_currency_data first, then merge_currencies"}},

	NotGrouped: {Code: NotGrouped, Message: "aggregation requires grouped data", Retryable: true, NextSteps: []string{"Supply group_by columns in the same apply_aggregation call"}},

	BusyResource:  {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, Transient: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:       {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, Transient: true, NextSteps: []string{"Narrow the request or retry"}},
	LimitExceeded: {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, NextSteps: []string{"Reduce rows, groups, or result count"}},

	FilterFailed:      {Code: FilterFailed, Message: "filter execution failed", Retryable: true, NextSteps: []string{"Simplify the condition or use the `col op value` form"}},
	AggregationFailed: {Code: AggregationFailed, Message: "aggregation failed", Retryable: true, NextSteps: []string{"Use a supported function such as sum, mean, min, max, count"}},
	MergeFailed:       {Code: MergeFailed, Message: "currency merge failed", Retryable: true, NextSteps: []string{"Verify currency_column and money_columns exist"}},
	SearchFailed:      {Code: SearchFailed, Message: "similarity search failed", Retryable: true, Transient: true, NextSteps: []string{"Simplify the query or reduce k"}},
	ReportFailed:      {Code: ReportFailed, Message: "report generation failed", Retryable: true, NextSteps: []string{"Check the report payload fields and retry"}},

	RateFetchFailed: {Code: RateFetchFailed, Message: "exchange-rate API request failed", Retryable: true, Transient: true, NextSteps: []string{"Verify FREE_CURRENCY_API_KEY and network access", "Retry shortly"}},
	LoadFailed:      {Code: LoadFailed, Message: "failed to load dataset", Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},

	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported dataset format", Retryable: false, NextSteps: []string{"Provide a .csv or .xlsx file"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},
}

// normalize builds a standard error string including next steps for MCP clients
// that surface only a message string. Format: "CODE: message" followed by a
// guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		// Unknown code; preserve as-is
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// Text renders the normalized error string without wrapping it in an MCP result.
// The dispatcher uses this form because every operation returns plain text.
func Text(code Code, message string) string {
	return normalize(code, message)
}

// Textf formats details and renders the normalized error string.
func Textf(code Code, format string, args ...any) string {
	return normalize(code, fmt.Sprintf(format, args...))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// Retryable reports whether the catalog marks a code as safe to retry.
func Retryable(code Code) bool {
	e, ok := catalog[code]
	return ok && e.Retryable
}

// Transient reports whether the code describes a failure that can clear
// without the input changing. Resending an identical payload after a
// transient failure is legitimate, so the dispatcher's repeated-failure
// guard does not count these.
func Transient(code Code) bool {
	e, ok := catalog[code]
	return ok && e.Transient
}
