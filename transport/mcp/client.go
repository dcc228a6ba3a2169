package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/boxcast/game/config"
	"github.com/wricardo/boxcast/game/engine"
	"github.com/wricardo/boxcast/game/service"
)

// defaultSender labels chat injected through MCP when no sender is given
const defaultSender = "mcp"

// defaultWorldLimit is how many boxes world_state lists unless asked otherwise
const defaultWorldLimit = 20

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Boxcast",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Boxcast - MCP Interface

This is a thin client that proxies all requests to the REST API of a
real-time box-world broadcast server. Every connected viewer sees the
same world.

CHAT COMMANDS (case-sensitive, exact match):
- jump: move every box up by the jump offset
- run: spawn a batch of fast, colour-cycling, pulsing boxes for a few seconds
- stress: replace the world with ~100 animated boxes at ~60 updates/s

AVAILABLE TOOLS:
- world_state: Snapshot of the boxes every viewer currently sees
- server_status: Connections, active effect and its expiry, clock period, counters
- send_chat: Send a chat line to every viewer; command texts trigger effects
- trigger_effect: Shortcut for send_chat with a command
- list_profiles: Simulation profiles available to the server`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "world_state",
		Description: "Get a snapshot of the shared box world",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("Maximum number of boxes to list (default %d)", defaultWorldLimit),
				},
			},
		},
	}, c.handleWorldState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_status",
		Description: "Get connections, active effect, clock period and broadcast counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "send_chat",
		Description: "Broadcast a chat line to every viewer. The texts jump, run and stress trigger effects.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Chat text",
				},
				"from": map[string]interface{}{
					"type":        "string",
					"description": fmt.Sprintf("Sender label shown to viewers (default %q)", defaultSender),
				},
			},
			Required: []string{"text"},
		},
	}, c.handleSendChat)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "trigger_effect",
		Description: "Trigger a simulation effect",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"effect": map[string]interface{}{
					"type":        "string",
					"enum":        []string{service.CommandJump, service.CommandRun, service.CommandStress},
					"description": "Effect to trigger",
				},
			},
			Required: []string{"effect"},
		},
	}, c.handleTriggerEffect)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_profiles",
		Description: "List the simulation profiles available to the server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListProfiles)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleWorldState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	limit := defaultWorldLimit
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	var world worldResponse
	if err := c.apiCall(ctx, "GET", "/api/world", nil, &world); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatWorld(&world, limit)), nil
}

func (c *Client) handleServerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status service.Status
	if err := c.apiCall(ctx, "GET", "/api/status", nil, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStatus(&status)), nil
}

func (c *Client) handleSendChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	text, _ := args["text"].(string)
	from, _ := args["from"].(string)

	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	return c.sendChat(ctx, text, from)
}

func (c *Client) handleTriggerEffect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	effect, _ := args["effect"].(string)

	switch effect {
	case service.CommandJump, service.CommandRun, service.CommandStress:
		return c.sendChat(ctx, effect, "")
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown effect %q (use jump, run or stress)", effect)), nil
	}
}

func (c *Client) sendChat(ctx context.Context, text, from string) (*mcp.CallToolResult, error) {
	if from == "" {
		from = defaultSender
	}

	var resp struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	body := map[string]string{"text": text, "from": from}
	if err := c.apiCall(ctx, "POST", "/api/chat", body, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Sent %q as %s to %d viewer(s)", text, from, resp.Connections)), nil
}

func (c *Client) handleListProfiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Active   string                `json:"active"`
		Count    int                   `json:"count"`
		Profiles []*config.ProfileInfo `json:"profiles"`
	}
	if err := c.apiCall(ctx, "GET", "/api/profiles", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Profiles (%d), active: %s\n\n", resp.Count, resp.Active)
	for _, p := range resp.Profiles {
		marker := " "
		if p.ProfileID == resp.Active {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %s [%s]", marker, p.ProfileID, p.Variant)
		if p.Description != "" {
			fmt.Fprintf(&sb, " - %s", p.Description)
		}
		if p.BuiltIn {
			sb.WriteString(" (built in)")
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// Formatting

type worldResponse struct {
	Population int          `json:"population"`
	Boxes      []engine.Box `json:"boxes"`
}

func formatWorld(world *worldResponse, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Population: %d\n", world.Population)

	shown := world.Boxes
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for i, b := range shown {
		fmt.Fprintf(&sb, "#%d (%.1f, %.1f) speed=%.2f size=%.1f color=%s", i, b.X, b.Y, b.Speed, b.Size, b.Color)
		if b.StressAttrs != nil {
			fmt.Fprintf(&sb, " shape=%s rot=%.0f opacity=%.2f", b.Shape, b.Rotation, b.Opacity)
		}
		sb.WriteString("\n")
	}
	if rest := len(world.Boxes) - len(shown); rest > 0 {
		fmt.Fprintf(&sb, "... %d more\n", rest)
	}
	return sb.String()
}

func formatStatus(s *service.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Profile: %s (%s)\n", s.Profile, s.Variant)
	fmt.Fprintf(&sb, "Connections: %d\n", s.Connections)
	fmt.Fprintf(&sb, "Effect: %s", s.Effect)
	if s.EffectExpiresAt != nil {
		fmt.Fprintf(&sb, " (expires %s)", s.EffectExpiresAt.Format(time.RFC3339))
	}
	sb.WriteString("\n")
	if s.ClockPeriodMs > 0 {
		fmt.Fprintf(&sb, "Clock: every %dms\n", s.ClockPeriodMs)
	} else {
		sb.WriteString("Clock: stopped\n")
	}
	fmt.Fprintf(&sb, "Population: %d\n", s.Population)
	if s.Effect == service.EffectStress {
		fmt.Fprintf(&sb, "Frame: %d\n", s.Frame)
	}
	fmt.Fprintf(&sb, "Broadcasts: %d, send failures: %d, dropped messages: %d\n",
		s.Broadcasts, s.SendFailures, s.DroppedMessages)
	fmt.Fprintf(&sb, "Live timers: %d\n", s.LiveTimers)
	return sb.String()
}
