/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/PivotLLM/Foreman/config"
	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/server"
)

func main() {
	// Top-level panic recovery
	defer func() {
		if rec := recover(); rec != nil {
			_, _ = fmt.Fprintf(os.Stderr, "FATAL PANIC: %v\n", rec)
			os.Exit(2)
		}
	}()

	// Parse command line flags
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		version    = flag.Bool("version", false, "Show version information")
		help       = flag.Bool("help", false, "Show help information")
	)
	flag.Parse()

	// Handle version flag
	if *version {
		fmt.Printf("%s v%s\n", global.ProgramName, global.Version)
		return
	}

	// Handle help flag
	if *help {
		showHelp()
		return
	}

	var opts []config.Option
	if *configPath != "" {
		opts = append(opts, config.WithConfigPath(*configPath))
	}
	cfg := config.New(opts...)

	// Load and validate configuration
	if err := cfg.Load(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger with config path
	logger, err := logging.New(cfg.LogFile())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *logging.Logger) {
		// Ensure logs are flushed before exit
		_ = logger.Sync()
		_ = logger.Close()
	}(logger)

	// Set log level from config
	logger.SetLevel(cfg.LogLevel())

	// Announce startup
	logger.Infof("%s v%s starting", global.ProgramName, global.Version)

	// Log first-run message
	if cfg.IsFirstRun() {
		logger.Infof("First run detected - created default configuration at %s", cfg.ConfigPath())
		logger.Infof("Place tool scripts in %s to make them available", cfg.ToolsDir())
	}

	// Create and start server
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	// Run the server
	if err := srv.Run(); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}

func showHelp() {
	fmt.Printf(`%s v%s - MCP Server for CLI Tool Orchestration

USAGE:
    %s [OPTIONS]

OPTIONS:
    --config PATH    Path to configuration file
                     (default: $FOREMAN_CONFIG or %s/%s)
    --version        Show version information
    --help          Show this help message

DESCRIPTION:
    Foreman is a Model Context Protocol (MCP) server that wraps a
    directory of command-line analysis tools:

    - Tool registry built by scanning declared arguments (no execution)
    - Asynchronous job execution with progress tracking
    - Bounded concurrency with a pending queue
    - Per-job output directories and output file discovery
    - Job retention with automatic cleanup

CONFIGURATION:
    The server uses a JSON configuration file that defines:

    - tools_dir: Directory scanned for tool scripts (default: tools)
    - output_dir: Root for per-job output directories (default: output)
    - python: Interpreter used to launch tools (default: python3)
    - runner: Concurrency, queue, timeout, and retention settings

    On first run, a default configuration is created in %s.

FIRST RUN:
    1. Run %s once to create default config
    2. Place tool scripts in %s/tools
    3. Run %s again to start the server

EXAMPLES:
    # Start with default config
    %s

    # Start with custom config
    %s --config /path/to/config.json

    # Show version
    %s --version

ENVIRONMENT:
    FOREMAN_CONFIG    Path to configuration file (if --config not used)

Use the tool_list and tool_get tools to inspect the registered catalog.
`, global.ProgramName, global.Version,
		global.ProgramName,
		global.DefaultBaseDir, global.DefaultConfigFileName,
		global.DefaultBaseDir,
		global.ProgramName,
		global.DefaultBaseDir,
		global.ProgramName,
		global.ProgramName,
		global.ProgramName,
		global.ProgramName)
}
