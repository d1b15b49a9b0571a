package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/tracker"
)

// Server exposes the issue operations as MCP tools.
type Server struct {
	tracker *tracker.Tracker
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(t *tracker.Tracker, version string) *Server {
	return &Server{tracker: t, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("issues", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.deleteIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// outcome mirrors the HTTP body of update/delete results and domain failures.
type outcome struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     string `json:"_id,omitempty"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// failure converts a tracker error into a tool error carrying the HTTP error body.
func failure(err error) (*mcp.CallToolResult, error) {
	if !tracker.IsDomainError(err) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, _ := tracker.ErrorID(err)
	data, _ := json.Marshal(outcome{Error: err.Error(), ID: id})
	return mcp.NewToolResultError(string(data)), nil
}

// fieldOptions declares one optional parameter per field for which include is true.
func fieldOptions(include func(models.FieldSpec) bool) []mcp.ToolOption {
	var opts []mcp.ToolOption
	for _, spec := range models.Fields {
		if !include(spec) {
			continue
		}
		desc := mcp.Description(fmt.Sprintf("%s (%s)", spec.Name, spec.Kind))
		if spec.Kind == models.KindBool {
			opts = append(opts, mcp.WithBoolean(string(spec.Name), desc))
			continue
		}
		opts = append(opts, mcp.WithString(string(spec.Name), desc))
	}
	return opts
}

// issues_create
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_create",
		mcp.WithDescription("Create an issue in a project. issue_title, issue_text and created_by are required. Returns the created issue as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(string(models.FieldTitle), mcp.Description("Issue title")),
		mcp.WithString(string(models.FieldText), mcp.Description("Issue text")),
		mcp.WithString(string(models.FieldCreatedBy), mcp.Description("Creator")),
		mcp.WithString(string(models.FieldAssignedTo), mcp.Description("Assignee (default empty)")),
		mcp.WithString(string(models.FieldStatusText), mcp.Description("Status text (default empty)")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	issue, err := s.tracker.Create(ctx, project, tracker.CreateInputFromBody(request.GetArguments()))
	if err != nil {
		return failure(err)
	}
	return jsonResult(issue)
}

// issues_list
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List the issues of a project. Every other parameter is an equality filter on the field of the same name. Returns a JSON array."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	}
	opts = append(opts, fieldOptions(func(f models.FieldSpec) bool { return f.Name != models.FieldProject })...)
	return mcp.NewTool("issues_list", opts...), s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	query := url.Values{}
	for key, v := range request.GetArguments() {
		if key == "project" || v == nil {
			continue
		}
		query.Set(key, cast.ToString(v))
	}

	issues, err := s.tracker.List(ctx, project, query)
	if err != nil {
		return failure(err)
	}
	return jsonResult(issues)
}

// issues_update
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Update an issue by _id. At least one non-empty field is required. The updated issue is not returned; list it to see new values."),
		mcp.WithString(string(models.FieldID), mcp.Required(), mcp.Description("Issue id")),
	}
	opts = append(opts, fieldOptions(func(f models.FieldSpec) bool { return f.Updatable })...)
	return mcp.NewTool("issues_update", opts...), s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.tracker.Update(ctx, request.GetArguments())
	if err != nil {
		return failure(err)
	}
	return jsonResult(outcome{Result: "successfully updated", ID: id})
}

// issues_delete
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issues_delete",
		mcp.WithDescription("Permanently delete an issue by _id."),
		mcp.WithString(string(models.FieldID), mcp.Required(), mcp.Description("Issue id")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := tracker.BodyID(request.GetArguments())
	if err := s.tracker.Delete(ctx, id); err != nil {
		return failure(err)
	}
	return jsonResult(outcome{Result: "successfully deleted", ID: id})
}
