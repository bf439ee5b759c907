package service

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Impact-Forge/SharedGamemode/internal/services/mcp/domain"
)

type mcpRegistrationKind int

const (
	mcpRegistrationKindTools mcpRegistrationKind = iota
	mcpRegistrationKindResources
)

const (
	mcpVotingToolsModuleName      = "voting-tools"
	mcpParticipantToolsModuleName = "participant-tools"
	mcpScenarioToolsModuleName    = "scenario-tools"
	mcpSessionResourceModuleName  = "session-resources"
)

type mcpRegistrationModule struct {
	name     string
	kind     mcpRegistrationKind
	register func(*mcp.Server) error
}

// toolRegistration binds a tool to its typed handler.
type toolRegistration struct {
	tool *mcp.Tool
	add  func(*mcp.Server)
}

func newToolRegistration[I any, O any](tool *mcp.Tool, handler mcp.ToolHandlerFor[I, O]) toolRegistration {
	return toolRegistration{
		tool: tool,
		add: func(server *mcp.Server) {
			mcp.AddTool(server, tool, handler)
		},
	}
}

func registerTools(server *mcp.Server, registrations ...toolRegistration) error {
	for _, registration := range registrations {
		if registration.tool == nil {
			return fmt.Errorf("tool is nil")
		}
		registration.add(server)
	}
	return nil
}

func newMCPRegistrationModules(client domain.HostClient, notify domain.ResourceUpdateNotifier) []mcpRegistrationModule {
	return []mcpRegistrationModule{
		{
			name: mcpVotingToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(server *mcp.Server) error {
				return registerTools(server,
					newToolRegistration(domain.SessionStatusTool(), domain.SessionStatusHandler(client)),
					newToolRegistration(domain.VotingStartTool(), domain.VotingStartHandler(client, notify)),
					newToolRegistration(domain.VotingCancelTool(), domain.VotingCancelHandler(client, notify)),
					newToolRegistration(domain.VotingResolveTool(), domain.VotingResolveHandler(client, notify)),
					newToolRegistration(domain.VoteCastTool(), domain.VoteCastHandler(client, notify)),
					newToolRegistration(domain.VetoCastTool(), domain.VetoCastHandler(client, notify)),
					newToolRegistration(domain.PerformanceUpdateTool(), domain.PerformanceUpdateHandler(client)),
					newToolRegistration(domain.PhaseChangedTool(), domain.PhaseChangedHandler(client, notify)),
				)
			},
		},
		{
			name: mcpParticipantToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(server *mcp.Server) error {
				return registerTools(server,
					newToolRegistration(domain.ParticipantJoinTool(), domain.ParticipantJoinHandler(client, notify)),
					newToolRegistration(domain.ParticipantLeaveTool(), domain.ParticipantLeaveHandler(client, notify)),
				)
			},
		},
		{
			name: mcpScenarioToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(server *mcp.Server) error {
				return registerTools(server,
					newToolRegistration(domain.ScenarioStartTool(), domain.ScenarioStartHandler(client, notify)),
					newToolRegistration(domain.ScenarioCancelTool(), domain.ScenarioCancelHandler(client, notify)),
					newToolRegistration(domain.TrackerMarkTool(), domain.TrackerMarkHandler(client, notify)),
					newToolRegistration(domain.LabelAddTool(), domain.LabelAddHandler(client)),
					newToolRegistration(domain.ScenarioStatsTool(), domain.ScenarioStatsHandler(client)),
					newToolRegistration(domain.RotationSetTool(), domain.RotationSetHandler(client, notify)),
				)
			},
		},
		{
			name: mcpSessionResourceModuleName,
			kind: mcpRegistrationKindResources,
			register: func(server *mcp.Server) error {
				server.AddResource(domain.StatusResource(), domain.StatusResourceHandler(client))
				server.AddResourceTemplate(domain.StatsResourceTemplate(), domain.StatsResourceHandler(client))
				return nil
			},
		},
	}
}
