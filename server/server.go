/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/PivotLLM/Foreman/config"
	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/orchestrator"
)

// Server wraps the MCP server with the orchestration services
type Server struct {
	config       *config.Config
	logger       *logging.Logger
	orchestrator *orchestrator.Service
	mcpServer    *server.MCPServer
}

// New creates a new server instance
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	svc := orchestrator.New(logger, cfg)

	mcpServer := server.NewMCPServer(
		global.ProgramName,
		global.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	srv := &Server{
		config:       cfg,
		logger:       logger,
		orchestrator: svc,
		mcpServer:    mcpServer,
	}

	if err := srv.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return srv, nil
}

// readOnlyTool creates a tool with read-only annotations
// ReadOnly: true, Destructive: false, OpenWorld: false
func (s *Server) readOnlyTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(true),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}))
	return mcp.NewTool(name, opts...)
}

// defaultTool creates a tool with default annotations (non-destructive)
// ReadOnly: false, Destructive: false, OpenWorld: false
func (s *Server) defaultTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(false),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}))
	return mcp.NewTool(name, opts...)
}

// destructiveTool creates a tool with destructive annotations
// ReadOnly: false, Destructive: true, OpenWorld: false
func (s *Server) destructiveTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(false),
		DestructiveHint: mcp.ToBoolPtr(true),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}))
	return mcp.NewTool(name, opts...)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Tool catalog
	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolToolList,
			mcp.WithDescription("List all registered analysis tools with their parameters, categories, and output information."),
			mcp.WithString("category",
				mcp.Description("Filter by category: graph, visualization, analysis, statistics, export, other (optional)"),
			),
		), s.handleToolList)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolToolGet,
			mcp.WithDescription("Get full metadata for one tool, including its parameter schema and inferred output patterns."),
			mcp.WithString("name",
				mcp.Description("Tool name"),
				mcp.Required(),
			),
		), s.handleToolGet)

	s.mcpServer.AddTool(
		s.defaultTool(global.ToolToolRescan,
			mcp.WithDescription("Rescan the tools directory and rebuild the catalog. Running jobs are unaffected."),
		), s.handleToolRescan)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolCategories,
			mcp.WithDescription("Get tool counts per category."),
		), s.handleToolCategories)

	// Jobs
	s.mcpServer.AddTool(
		s.defaultTool(global.ToolToolRun,
			mcp.WithDescription("Run a tool asynchronously. Parameters are validated against the tool's declared schema before the job is created. Returns the job id immediately; poll job_get for progress and results."),
			mcp.WithString("tool",
				mcp.Description("Tool name (see tool_list)"),
				mcp.Required(),
			),
			mcp.WithObject("parameters",
				mcp.Description("Tool parameters as an object keyed by parameter name"),
			),
			mcp.WithNumber("timeout",
				mcp.Description(fmt.Sprintf("Execution timeout in seconds (min: %d, max: %d, default: %d)",
					global.MinJobTimeout, global.MaxJobTimeout, global.DefaultJobTimeout)),
			),
		), s.handleToolRun)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolJobGet,
			mcp.WithDescription("Get the current state of a job: status, progress, captured output, and discovered output files."),
			mcp.WithString("job_id",
				mcp.Description("Job identifier returned by tool_run"),
				mcp.Required(),
			),
		), s.handleJobGet)

	s.mcpServer.AddTool(
		s.destructiveTool(global.ToolJobCancel,
			mcp.WithDescription("Cancel a job. Pending jobs are cancelled without starting; running jobs have their process terminated. Cancelling a finished job is a no-op."),
			mcp.WithString("job_id",
				mcp.Description("Job identifier"),
				mcp.Required(),
			),
		), s.handleJobCancel)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolJobList,
			mcp.WithDescription("List jobs, newest first, optionally filtered by status or tool."),
			mcp.WithString("status",
				mcp.Description("Filter by status: pending, running, completed, failed, cancelled (optional)"),
			),
			mcp.WithString("tool",
				mcp.Description("Filter by tool name (optional)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of jobs to return"),
			),
		), s.handleJobList)

	s.mcpServer.AddTool(
		s.defaultTool(global.ToolJobOutputConvert,
			mcp.WithDescription("Convert a completed job's output files to Markdown. Supports PDF, DOCX, and XLSX files. Converted files are written alongside the originals in the job's output directory."),
			mcp.WithString("job_id",
				mcp.Description("Job identifier"),
				mcp.Required(),
			),
		), s.handleJobOutputConvert)

	// System
	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolStats,
			mcp.WithDescription("Get catalog and job counters: total tools, total jobs, and jobs by status."),
		), s.handleStats)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolHealth,
			mcp.WithDescription("Check health status. Reports whether the system is ready to run tools and any issues, such as a missing interpreter or an empty tools directory."),
		), s.handleHealth)

	return nil
}

// Run starts the orchestration services and the MCP server, with graceful
// shutdown on signal or stdin close
func (s *Server) Run() error {
	if err := s.orchestrator.Start(); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	errChan := make(chan error, 1)
	go func() {
		err := server.ServeStdio(s.mcpServer)
		// ServeStdio returns when stdin is closed (EOF) or on error
		errChan <- err
	}()

	s.logger.Infof("MCP server started successfully")

	select {
	case <-sigChan:
		s.logger.Info("Shutdown signal received")
		s.drain()
		s.logger.Info("Server stopped")
		if err := s.logger.Sync(); err != nil {
			s.logger.Warnf("Failed to flush logs on shutdown: %v", err)
		}
		return nil

	case err := <-errChan:
		if err != nil {
			s.logger.Errorf("Server error: %v", err)
			s.drain()
			return fmt.Errorf("server error: %w", err)
		}
		// nil error means stdin was closed (EOF) - normal exit
		s.logger.Info("Connection closed")
		s.drain()
		s.logger.Info("Server exiting")
		return nil
	}
}

// drain waits for in-flight jobs before shutdown so their results are
// recorded and output files are written.
func (s *Server) drain() {
	s.logger.Info("Waiting for active jobs to complete...")
	s.orchestrator.Stop()
	s.logger.Info("All jobs drained")
}
