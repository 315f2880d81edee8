package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("LiftLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiftLog workout tracker. Read the current program position and workout, logged exercise results, personal records and program progress, and get next-session weight suggestions."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetPosition, Handler: h.getPosition},
		server.ServerTool{Tool: toolGetCurrentWorkout, Handler: h.getCurrentWorkout},
		server.ServerTool{Tool: toolGetExerciseHistory, Handler: h.getExerciseHistory},
		server.ServerTool{Tool: toolGetPersonalRecords, Handler: h.getPersonalRecords},
		server.ServerTool{Tool: toolGetProgramProgress, Handler: h.getProgramProgress},
		server.ServerTool{Tool: toolGetResults, Handler: h.getResults},
		server.ServerTool{Tool: toolSuggestWeight, Handler: h.suggestWeight},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resCurrentWorkout, Handler: h.currentWorkout},
		server.ServerResource{Resource: resRecentResults, Handler: h.recentResults},
		server.ServerResource{Resource: resStatistics, Handler: h.statistics},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resCurrentWorkout = mcp.NewResource(
	"liftlog://current_workout",
	"Current Workout",
	mcp.WithResourceDescription("The program day at the current position together with the results already logged for it"),
	mcp.WithMIMEType("application/json"),
)

var resRecentResults = mcp.NewResource(
	"liftlog://recent_results",
	"Recent Results",
	mcp.WithResourceDescription("Exercise results from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

var resStatistics = mcp.NewResource(
	"liftlog://statistics",
	"Statistics",
	mcp.WithResourceDescription("Storage backend, workout totals and the current position"),
	mcp.WithMIMEType("application/json"),
)
