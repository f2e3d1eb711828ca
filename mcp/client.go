package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sweetpotato0/wanderai/pkg/logging"
)

// ErrClientClosed is returned when the MCP client has been closed.
var ErrClientClosed = errors.New("mcp client closed")

// ToolError is returned when the server answers a tool call with an error.
type ToolError struct {
	Name    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp tool %s: %s", e.Name, e.Message)
}

// AskResult is the structured answer of the ask tool.
type AskResult struct {
	Response         string   `json:"response"`
	SessionID        string   `json:"session_id"`
	Type             string   `json:"type"`
	Path             string   `json:"path"`
	ValidationStatus string   `json:"validation_status"`
	Sources          []string `json:"sources"`
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// WithLogger configures logging for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithHTTPClient supplies the HTTP client used by Dial.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// Client calls the tools of a remote WanderAI MCP server.
type Client struct {
	session *sdkmcp.ClientSession
	logger  *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to a server started with `wanderai mcp --http`.
func Dial(ctx context.Context, endpoint string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("mcp: endpoint cannot be empty")
	}
	cfg := newClientConfig(opts)
	transport := &sdkmcp.StreamableClientTransport{Endpoint: endpoint}
	if cfg.httpClient != nil {
		transport.HTTPClient = cfg.httpClient
	}
	return connect(ctx, transport, cfg)
}

// NewClient connects over an already established transport.
func NewClient(ctx context.Context, transport sdkmcp.Transport, opts ...ClientOption) (*Client, error) {
	return connect(ctx, transport, newClientConfig(opts))
}

func newClientConfig(opts []ClientOption) clientConfig {
	cfg := clientConfig{logger: logging.WithComponent("mcp_client")}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func connect(ctx context.Context, transport sdkmcp.Transport, cfg clientConfig) (*Client, error) {
	sdkClient := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "wanderai-client", Version: "1.0.0"}, nil)
	session, err := sdkClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect failed: %w", err)
	}
	c := &Client{session: session, logger: cfg.logger, done: make(chan struct{})}
	go c.monitorSession()
	return c, nil
}

// Close ends the session.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.session.Close()
		close(c.done)
	})
	return c.closeErr
}

func (c *Client) monitorSession() {
	if err := c.session.Wait(); err != nil && !errors.Is(err, sdkmcp.ErrConnectionClosed) {
		c.logger.Warn("mcp session ended with error", "error", err)
	}
	_ = c.Close()
}

// Ask sends message to the remote assistant, continuing sessionID when set.
func (c *Client) Ask(ctx context.Context, message, sessionID string) (AskResult, error) {
	args := map[string]any{"message": message}
	if sessionID != "" {
		args["session_id"] = sessionID
	}
	res, err := c.call(ctx, "ask", args)
	if err != nil {
		return AskResult{}, err
	}

	out := AskResult{Response: textOf(res.Content)}
	if res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return AskResult{}, fmt.Errorf("mcp: encode ask result: %w", err)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return AskResult{}, fmt.Errorf("mcp: decode ask result: %w", err)
		}
	}
	return out, nil
}

// Search returns the formatted knowledge base matches for query.
func (c *Client) Search(ctx context.Context, query string, topK int) (string, error) {
	args := map[string]any{"query": query}
	if topK > 0 {
		args["top_k"] = topK
	}
	return c.CallTool(ctx, "search_knowledge_base", args)
}

// ListTools returns the names of every tool the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]string, error) {
	if c.closed() {
		return nil, ErrClientClosed
	}
	var names []string
	params := &sdkmcp.ListToolsParams{}
	for {
		res, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, t := range res.Tools {
			if t != nil {
				names = append(names, t.Name)
			}
		}
		if res.NextCursor == "" {
			return names, nil
		}
		params.Cursor = res.NextCursor
	}
}

// CallTool invokes a tool and returns its text content.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := c.call(ctx, name, args)
	if err != nil {
		return "", err
	}
	return textOf(res.Content), nil
}

func (c *Client) call(ctx context.Context, name string, args map[string]any) (*sdkmcp.CallToolResult, error) {
	if c.closed() {
		return nil, ErrClientClosed
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := c.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	if res.IsError {
		msg := textOf(res.Content)
		if msg == "" {
			msg = "tool returned error without message"
		}
		return nil, &ToolError{Name: name, Message: msg}
	}
	return res, nil
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func textOf(content []sdkmcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if t, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
