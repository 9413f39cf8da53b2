package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/oterdem/mcptab/internal/ops"
	"github.com/oterdem/mcptab/pkg/mcperr"
)

// AnalyzeInput is the uniform payload of the analyze_data tool: one action
// name plus its parameter object.
type AnalyzeInput struct {
	Action string         `json:"action" jsonschema_description:"Operation to run (see tool description for the full set)"`
	Params map[string]any `json:"params,omitempty" jsonschema_description:"Parameters for the action"`
}

// RawInput carries a raw JSON payload string for callers that build the
// request themselves. Malformed JSON gets one repair attempt before failing.
type RawInput struct {
	Payload string `json:"payload" jsonschema_description:"Raw JSON payload of the form {\"action\": ..., \"params\": {...}}"`
}

// RegisterAnalysisTools wires the dataset analysis tools to the dispatcher.
func RegisterAnalysisTools(s *server.MCPServer, reg *Registry, d *ops.Dispatcher) {
	actions := d.Actions()

	analyze := mcp.NewTool(
		"analyze_data",
		mcp.WithDescription(analyzeDescription(actions)),
		mcp.WithString("action", mcp.Required(), mcp.Enum(actions...), mcp.Description("Operation to run")),
		mcp.WithObject("params", mcp.Description("Parameters for the action; see per-action docs in the tool description")),
	)
	s.AddTool(analyze, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, error) {
		if strings.TrimSpace(in.Action) == "" {
			return mcperr.New(mcperr.Validation, "action is required"), nil
		}
		// Route through the raw entry point so the repeated-failure guard
		// sees a canonical form of the request.
		raw, err := json.Marshal(ops.Request{Action: in.Action, Params: in.Params})
		if err != nil {
			return mcperr.Wrapf(mcperr.Validation, "encode request: %v", err), nil
		}
		return mcp.NewToolResultText(d.Dispatch(ctx, string(raw))), nil
	}))
	reg.Register(analyze)

	analyzeRaw := mcp.NewTool(
		"analyze_data_raw",
		mcp.WithDescription("Run a dataset operation from a raw JSON payload string {\"action\": ..., \"params\": {...}}. Use analyze_data unless you must send the payload as text; malformed JSON gets a single repair attempt before being rejected."),
		mcp.WithString("payload", mcp.Required(), mcp.Description("Raw JSON payload")),
	)
	s.AddTool(analyzeRaw, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RawInput) (*mcp.CallToolResult, error) {
		if strings.TrimSpace(in.Payload) == "" {
			return mcperr.New(mcperr.Validation, "payload is required"), nil
		}
		return mcp.NewToolResultText(d.Dispatch(ctx, in.Payload)), nil
	}))
	reg.Register(analyzeRaw)
}

func analyzeDescription(actions []string) string {
	var b strings.Builder
	b.WriteString("Run one operation against the loaded financial dataset. ")
	b.WriteString("Inspection actions read the current working table; transform actions narrow it in place (filters chain; use reset_data to start over); ")
	b.WriteString("group_by then apply_aggregation computes grouped statistics; get_currency_data and merge_currencies convert money columns via live exchange rates; ")
	b.WriteString("generate_report renders a markdown summary; similarity_search queries the semantic index over the dataset.\n\n")
	fmt.Fprintf(&b, "Actions: %s.\n\n", strings.Join(actions, ", "))
	b.WriteString("Examples:\n")
	b.WriteString(`  {"action": "filter_data", "params": {"condition": "Salary > 50000"}}` + "\n")
	b.WriteString(`  {"action": "filter_data", "params": {"condition": "Name.str.contains('ali', case=False)"}}` + "\n")
	b.WriteString(`  {"action": "apply_aggregation", "params": {"group_by": ["Department"], "aggregation": "mean"}}` + "\n")
	b.WriteString(`  {"action": "merge_currencies", "params": {"currency_column": "Currency", "money_columns": ["Salary"]}}`)
	return b.String()
}
