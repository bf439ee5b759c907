package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusResource defines the readable session status resource.
func StatusResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "session_status",
		Title:       "Session status",
		Description: "Voting phase, active scenarios, running instances and participants",
		MIMEType:    "application/json",
		URI:         StatusResourceURI,
	}
}

// StatusResourceHandler returns the session status as JSON.
func StatusResourceHandler(client HostClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("host client is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, _, err := NewOutgoingContext(runCtx, "")
		if err != nil {
			return nil, fmt.Errorf("create request metadata: %w", err)
		}
		status, err := client.Status(callCtx)
		if err != nil {
			return nil, fmt.Errorf("session status failed: %w", err)
		}
		return jsonResource(StatusResourceURI, statusOutput(status))
	}
}

// StatsResourceTemplate defines the readable scenario statistics resource.
func StatsResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "scenario_stats",
		Title:       "Scenario statistics",
		Description: "Play history and rotation score of a scenario. URI format: scenario://{scenario_id}/stats",
		MIMEType:    "application/json",
		URITemplate: "scenario://{scenario_id}/stats",
	}
}

// StatsResourceHandler returns a scenario's statistics as JSON.
func StatsResourceHandler(client HostClient) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("host client is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("scenario ID is required; use URI format scenario://{scenario_id}/stats")
		}
		uri := req.Params.URI
		scenarioID, err := parseScenarioIDFromStatsURI(uri)
		if err != nil {
			return nil, err
		}

		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		callCtx, _, err := NewOutgoingContext(runCtx, "")
		if err != nil {
			return nil, fmt.Errorf("create request metadata: %w", err)
		}
		view, err := client.GetStats(callCtx, scenarioID)
		if err != nil {
			return nil, fmt.Errorf("scenario stats failed: %w", err)
		}
		return jsonResource(uri, statsResult(view))
	}
}

// parseScenarioIDFromStatsURI extracts the scenario ID from scenario://{scenario_id}/stats.
func parseScenarioIDFromStatsURI(uri string) (string, error) {
	const prefix, suffix = "scenario://", "/stats"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return "", fmt.Errorf("invalid URI %q: expected scenario://{scenario_id}/stats", uri)
	}
	scenarioID := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.TrimSpace(scenarioID) == "" || strings.Contains(scenarioID, "/") {
		return "", fmt.Errorf("invalid URI %q: scenario ID is required", uri)
	}
	return scenarioID, nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
