// Package mcp exposes the assistant as Model Context Protocol tools and
// provides a small client for calling them.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sweetpotato0/wanderai/assistant"
)

// DefaultSearchResults is the number of documents returned by
// search_knowledge_base when the caller does not ask for a count.
const DefaultSearchResults = 3

const maxSearchResults = 10

// Server wraps the assistant and exposes it as MCP tools.
type Server struct {
	server    *sdkmcp.Server
	assistant *assistant.Assistant
}

// NewServer creates an MCP server for a.
func NewServer(a *assistant.Assistant, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{assistant: a}
	s.server = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "wanderai",
		Title:   "WanderAI travel assistant",
		Version: version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return s.server
	}, nil)
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.server
}

type askInput struct {
	Message   string `json:"message" jsonschema:"the traveller's question or request"`
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation to continue; a new one is started when empty or unknown"`
}

type askOutput struct {
	Response         string   `json:"response"`
	SessionID        string   `json:"session_id"`
	Type             string   `json:"type"`
	Path             string   `json:"path"`
	ValidationStatus string   `json:"validation_status"`
	Sources          []string `json:"sources"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"what to look up in the knowledge base"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of documents to return, 1 to 10, defaults to 3"`
}

type describeInput struct {
	Place string `json:"place" jsonschema:"name of the place to describe"`
}

type statsInput struct {
	SessionID string `json:"session_id" jsonschema:"conversation to inspect"`
}

type statsOutput struct {
	TotalMessages           int `json:"total_messages"`
	ValidatedResponses      int `json:"validated_responses"`
	HallucinationsPrevented int `json:"hallucinations_prevented"`
	KBRefreshes             int `json:"kb_refreshes"`
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "ask",
		Description: "Ask the travel assistant a question. Suggests trips and itineraries around Pune and answers from its verified knowledge base.",
	}, s.handleAsk)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "search_knowledge_base",
		Description: "Search the travel knowledge base and return the matching places as formatted text.",
	}, s.handleSearch)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "describe_place",
		Description: "Write a short description of a place grounded on the knowledge base.",
	}, s.handleDescribe)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "session_stats",
		Description: "Return the message and validation counters of a conversation.",
	}, s.handleStats)
}

func (s *Server) handleAsk(ctx context.Context, _ *sdkmcp.CallToolRequest, in askInput) (*sdkmcp.CallToolResult, askOutput, error) {
	if strings.TrimSpace(in.Message) == "" {
		return errorResult("message is required"), askOutput{}, nil
	}
	r := s.assistant.ProcessMessage(ctx, in.Message, in.SessionID)
	out := askOutput{
		Response:         r.Response,
		SessionID:        r.SessionID,
		Type:             string(r.Type),
		Path:             string(r.Path),
		ValidationStatus: string(r.ValidationStatus),
		Sources:          r.Sources,
	}
	return textResult(r.Response), out, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *sdkmcp.CallToolRequest, in searchInput) (*sdkmcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Query) == "" {
		return errorResult("query is required"), nil, nil
	}
	topK := in.TopK
	if topK <= 0 {
		topK = DefaultSearchResults
	}
	topK = min(topK, maxSearchResults)

	text, err := s.assistant.Search(ctx, in.Query, topK)
	if err != nil {
		return errorResult(fmt.Sprintf("searching knowledge base: %s", err)), nil, nil
	}
	return textResult(text), nil, nil
}

func (s *Server) handleDescribe(ctx context.Context, _ *sdkmcp.CallToolRequest, in describeInput) (*sdkmcp.CallToolResult, any, error) {
	text, err := s.assistant.Describe(ctx, in.Place)
	if err != nil {
		return errorResult(fmt.Sprintf("describing %q: %s", in.Place, err)), nil, nil
	}
	return textResult(text), nil, nil
}

func (s *Server) handleStats(ctx context.Context, _ *sdkmcp.CallToolRequest, in statsInput) (*sdkmcp.CallToolResult, statsOutput, error) {
	st, err := s.assistant.Stats(ctx, in.SessionID)
	if err != nil {
		return errorResult(fmt.Sprintf("session %q: %s", in.SessionID, err)), statsOutput{}, nil
	}
	out := statsOutput{
		TotalMessages:           st.TotalMessages,
		ValidatedResponses:      st.ValidatedResponses,
		HallucinationsPrevented: st.HallucinationsPrevented,
		KBRefreshes:             st.KBRefreshes,
	}
	return nil, out, nil
}

func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: msg}},
		IsError: true,
	}
}
