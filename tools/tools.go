// Package tools defines the MCP tools served by xbrlmcp.
//
// Every tool reads the handle the auth gate published for the request and
// fails with AuthRequiredMessage when there is none. Tools never
// authenticate on their own.
package tools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jonwraymond/xbrlmcp/auth"
	"github.com/jonwraymond/xbrlmcp/xbrl"
)

// Tool names.
const (
	SearchCompanies = "search_companies"
	SearchFacts     = "search_facts"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// AuthRequiredMessage is the tool error when no authenticated handle is present.
const AuthRequiredMessage = "XBRL authentication required. Please provide valid credentials in the request."

// Register adds the XBRL tools to s. cfg is shared by every call, so a
// circuit breaker in it covers all sessions.
func Register(s *server.MCPServer, cfg xbrl.Config) {
	ts := &toolset{cfg: cfg}

	s.AddTool(mcp.NewTool(SearchCompanies,
		mcp.WithTitleAnnotation("Search Companies"),
		mcp.WithDescription("List companies that reported facts for a fiscal year, with CIK and ticker."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Fiscal year to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results to return"),
			mcp.DefaultNumber(defaultLimit), mcp.Min(1), mcp.Max(maxLimit)),
	), ts.searchCompanies)

	s.AddTool(mcp.NewTool(SearchFacts,
		mcp.WithTitleAnnotation("Search Facts"),
		mcp.WithDescription("Search reported XBRL facts for one company and fiscal year."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("cik", mcp.Required(), mcp.Description("Company CIK, e.g. 0000320193"),
			mcp.Pattern(`^[0-9]{1,10}$`)),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Fiscal year")),
		mcp.WithString("concept", mcp.Description("Concept local name, e.g. Revenues")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results to return"),
			mcp.DefaultNumber(defaultLimit), mcp.Min(1), mcp.Max(maxLimit)),
	), ts.searchFacts)
}

type toolset struct {
	cfg xbrl.Config
}

// Result is the structured content returned by every tool.
type Result struct {
	Count int              `json:"count"`
	Rows  []map[string]any `json:"rows"`
}

func (t *toolset) searchCompanies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return t.run(ctx, xbrl.Query{
		Fields:     []string{"entity.cik", "entity.name", "entity.ticker"},
		Parameters: map[string]string{"period.fiscal-year": strconv.Itoa(year)},
		Limit:      limitArg(req),
	})
}

func (t *toolset) searchFacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cik, err := req.RequireString("cik")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	year, err := req.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := map[string]string{
		"entity.cik":         padCIK(cik),
		"period.fiscal-year": strconv.Itoa(year),
	}
	if concept := req.GetString("concept", ""); concept != "" {
		params["concept.local-name"] = concept
	}
	return t.run(ctx, xbrl.Query{
		Fields:     []string{"fact.*"},
		Parameters: params,
		Limit:      limitArg(req),
	})
}

func (t *toolset) run(ctx context.Context, q xbrl.Query) (*mcp.CallToolResult, error) {
	h := auth.HandleFromContext(ctx)
	if h == nil {
		return mcp.NewToolResultError(AuthRequiredMessage), nil
	}

	client, err := xbrl.NewClient(h, t.cfg)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to fetch XBRL data", err), nil
	}
	rows, err := client.Query(ctx, q)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to fetch XBRL data", err), nil
	}

	res, err := mcp.NewToolResultJSON(Result{Count: len(rows), Rows: rows})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("Failed to encode XBRL data", err), nil
	}
	return res, nil
}

func limitArg(req mcp.CallToolRequest) int {
	n := req.GetInt("limit", defaultLimit)
	switch {
	case n < 1:
		return 1
	case n > maxLimit:
		return maxLimit
	}
	return n
}

// padCIK left-pads a CIK to the 10 digits the API stores.
func padCIK(cik string) string {
	if len(cik) >= 10 {
		return cik
	}
	n, err := strconv.ParseUint(cik, 10, 64)
	if err != nil {
		return cik
	}
	return fmt.Sprintf("%010d", n)
}
