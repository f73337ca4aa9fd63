/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tenebris-tech/x2md/convert"

	"github.com/PivotLLM/Foreman/global"
)

// Helper function to create JSON tool results safely
func createJSONResult(data interface{}) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(data)
	if err != nil {
		return mcp.NewToolResultError("Failed to create JSON result"), nil
	}
	return result, nil
}

// logToolCall logs an MCP tool invocation at INFO level
func (s *Server) logToolCall(toolName string, params map[string]string) {
	if len(params) == 0 {
		s.logger.Infof("Tool %s called", toolName)
		return
	}
	var parts []string
	for k, v := range params {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}
	if len(parts) == 0 {
		s.logger.Infof("Tool %s called", toolName)
	} else {
		s.logger.Infof("Tool %s called: %s", toolName, joinStrings(parts, ", "))
	}
}

// joinStrings joins string slice with separator (avoiding strings import)
func joinStrings(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += sep + parts[i]
	}
	return result
}

// Tool catalog handlers

func (s *Server) handleToolList(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := mcp.ParseString(request, "category", "")

	s.logToolCall(global.ToolToolList, map[string]string{"category": category})

	return createJSONResult(s.orchestrator.ListTools(category))
}

func (s *Server) handleToolGet(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")

	s.logToolCall(global.ToolToolGet, map[string]string{"name": name})

	if name == "" {
		return mcp.NewToolResultError("name parameter is required"), nil
	}

	meta, err := s.orchestrator.GetTool(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return createJSONResult(meta)
}

func (s *Server) handleToolRescan(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolToolRescan, nil)

	count, err := s.orchestrator.Rescan()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return createJSONResult(map[string]interface{}{
		"rescanned": true,
		"tools":     count,
	})
}

func (s *Server) handleToolCategories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolCategories, nil)
	return createJSONResult(s.orchestrator.Categories())
}

// Job handlers

func (s *Server) handleToolRun(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolName := mcp.ParseString(request, "tool", "")
	timeout := int(mcp.ParseFloat64(request, "timeout", 0))

	s.logToolCall(global.ToolToolRun, map[string]string{"tool": toolName})

	if toolName == "" {
		return mcp.NewToolResultError("tool parameter is required"), nil
	}

	var params map[string]interface{}
	if val, ok := request.GetArguments()["parameters"]; ok && val != nil {
		m, ok := val.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("parameters must be an object"), nil
		}
		params = m
	}

	resp, err := s.orchestrator.RunTool(toolName, params, timeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return createJSONResult(resp)
}

func (s *Server) handleJobGet(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := mcp.ParseString(request, "job_id", "")

	s.logToolCall(global.ToolJobGet, map[string]string{"job_id": jobID})

	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, err := s.orchestrator.GetJob(jobID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return createJSONResult(job)
}

func (s *Server) handleJobCancel(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := mcp.ParseString(request, "job_id", "")

	s.logToolCall(global.ToolJobCancel, map[string]string{"job_id": jobID})

	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, err := s.orchestrator.CancelJob(jobID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return createJSONResult(job)
}

func (s *Server) handleJobList(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := mcp.ParseString(request, "status", "")
	toolName := mcp.ParseString(request, "tool", "")
	limit := int(mcp.ParseFloat64(request, "limit", 0))

	s.logToolCall(global.ToolJobList, map[string]string{"status": status, "tool": toolName})

	if status != "" && !global.ValidJobStatus(status) {
		return mcp.NewToolResultError("status must be one of: pending, running, completed, failed, cancelled"), nil
	}

	list := s.orchestrator.ListJobs(global.JobFilter{
		Status:   status,
		ToolName: toolName,
		Limit:    limit,
	})

	return createJSONResult(map[string]interface{}{
		"total": len(list),
		"jobs":  list,
	})
}

func (s *Server) handleJobOutputConvert(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := mcp.ParseString(request, "job_id", "")

	s.logToolCall(global.ToolJobOutputConvert, map[string]string{"job_id": jobID})

	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, err := s.orchestrator.GetJob(jobID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !global.IsTerminalStatus(job.Status) {
		return mcp.NewToolResultError(fmt.Sprintf("job is still %s - outputs can be converted once it finishes", job.Status)), nil
	}
	if job.OutputDir == "" {
		return mcp.NewToolResultError("job has no output directory"), nil
	}

	converter := convert.New(
		convert.WithRecursion(true),
		convert.WithSkipExisting(true),
	)

	result, err := converter.Convert(job.OutputDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("conversion failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"job_id":    jobID,
		"converted": result.Converted,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}
	if result.Converted > 0 {
		response["message"] = fmt.Sprintf("Converted %d file(s)", result.Converted)
	} else if result.Skipped > 0 {
		response["message"] = fmt.Sprintf("No files converted (%d skipped)", result.Skipped)
	} else {
		response["message"] = "No files to convert"
	}

	return createJSONResult(response)
}

// System handlers

func (s *Server) handleStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolStats, nil)
	return createJSONResult(s.orchestrator.Stats())
}

func (s *Server) handleHealth(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolHealth, nil)
	var issues []string

	interpreter, found := s.orchestrator.InterpreterPath()
	if !found {
		issues = append(issues, fmt.Sprintf("interpreter not found: %s - install it or set 'python' in config.json", interpreter))
	}

	if s.orchestrator.ToolCount() == 0 {
		issues = append(issues, fmt.Sprintf("no tools registered - place tool scripts in %s and call tool_rescan", s.config.ToolsDir()))
	}

	if s.config.IsFirstRun() {
		issues = append(issues, "this is a first run - configuration was just created, please review and configure")
	}

	healthy := len(issues) == 0
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	result := map[string]interface{}{
		"status":       status,
		"healthy":      healthy,
		"program_name": global.ProgramName,
		"version":      global.Version,
		"base_dir":     s.config.BaseDir(),
		"config_path":  s.config.ConfigPath(),
		"tools_dir":    s.config.ToolsDir(),
		"interpreter":  interpreter,
		"tools":        s.orchestrator.ToolCount(),
		"first_run":    s.config.IsFirstRun(),
	}

	if len(issues) > 0 {
		result["issues"] = issues
	}

	return createJSONResult(result)
}
