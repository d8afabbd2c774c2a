// Package mcp exposes the vault to AI agents over the Model Context
// Protocol: search, read, write, and daily-log tools.
package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
	"github.com/vaultidx/vaultidx/internal/search"
	"github.com/vaultidx/vaultidx/internal/vault"
	"github.com/vaultidx/vaultidx/pkg/version"
)

// Server is the MCP server bridging agents to the vault and the
// search engine.
type Server struct {
	mcp    *mcp.Server
	vault  *vault.Vault
	engine *search.Engine
	logger *slog.Logger
}

// NewServer creates the MCP server and registers the vault tools.
func NewServer(v *vault.Vault, engine *search.Engine, logger *slog.Logger) (*Server, error) {
	if v == nil || engine == nil {
		return nil, vxerrors.New(vxerrors.ErrCodeInternal, "mcp server requires vault and search engine", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		vault:  v,
		engine: engine,
		logger: logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "vaultidx",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_notes",
		Description: "Search the notes vault by meaning and keywords. Results are grouped by source category (reference, projects, inbox, daily, sessions) with the most authoritative categories first.",
	}, s.handleSearchNotes)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "read_note",
		Description: "Read a note by vault-relative path, optionally a line window only. Use the path and line range from search results to pull full context.",
	}, s.handleReadNote)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "write_note",
		Description: "Create or update a markdown note. With a section heading, only that section is appended to or replaced; the rest of the note is untouched.",
	}, s.handleWriteNote)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "append_daily",
		Description: "Append a timestamped entry to today's daily note, creating the note if needed.",
	}, s.handleAppendDaily)

	s.logger.Info("mcp tools registered", slog.Int("count", 4))
}

// Serve runs the server on stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// SearchNotesInput is the search_notes tool input.
type SearchNotesInput struct {
	Query    string   `json:"query" jsonschema:"the search query"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum results, default 15, max 50"`
	MinScore float64  `json:"minScore,omitempty" jsonschema:"minimum relevance score 0-1, default 0.25"`
	Sources  []string `json:"sources,omitempty" jsonschema:"restrict to these source categories: reference, projects, inbox, daily, sessions, other"`
}

// SearchNotesOutput is the search_notes tool output.
type SearchNotesOutput struct {
	Groups   []*search.Group  `json:"groups" jsonschema:"result groups in category priority order"`
	Total    int              `json:"total" jsonschema:"total number of results"`
	Mode     string           `json:"mode" jsonschema:"hybrid or lexical"`
	Degraded *search.Degraded `json:"degraded,omitempty" jsonschema:"present when semantic search was unavailable, with the provider and reason"`
}

func (s *Server) handleSearchNotes(ctx context.Context, _ *mcp.CallToolRequest, input SearchNotesInput) (
	*mcp.CallToolResult, SearchNotesOutput, error,
) {
	for _, src := range input.Sources {
		if !vault.ValidCategory(src) {
			return nil, SearchNotesOutput{}, vxerrors.ValidationError("unknown source: "+src, nil)
		}
	}

	opts := search.Options{
		MaxResults: clampLimit(input.Limit),
		MinScore:   input.MinScore,
		Sources:    input.Sources,
	}
	resp, err := s.engine.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchNotesOutput{}, err
	}

	groups := resp.Groups
	if groups == nil {
		groups = []*search.Group{}
	}
	return nil, SearchNotesOutput{
		Groups:   groups,
		Total:    resp.Total,
		Mode:     resp.Mode,
		Degraded: resp.Degraded,
	}, nil
}

// ReadNoteInput is the read_note tool input.
type ReadNoteInput struct {
	Path      string `json:"path" jsonschema:"vault-relative note path"`
	StartLine int    `json:"startLine,omitempty" jsonschema:"1-based first line of a window"`
	LineCount int    `json:"lineCount,omitempty" jsonschema:"number of lines in the window"`
}

// ReadNoteOutput is the read_note tool output.
type ReadNoteOutput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleReadNote(ctx context.Context, _ *mcp.CallToolRequest, input ReadNoteInput) (
	*mcp.CallToolResult, ReadNoteOutput, error,
) {
	if input.Path == "" {
		return nil, ReadNoteOutput{}, vxerrors.ValidationError("path is required", nil)
	}

	var content string
	var err error
	if input.StartLine > 0 {
		content, err = s.vault.ReadLines(input.Path, input.StartLine, input.LineCount)
	} else {
		content, err = s.vault.Read(input.Path)
	}
	if err != nil {
		return nil, ReadNoteOutput{}, err
	}
	return nil, ReadNoteOutput{Path: input.Path, Content: content}, nil
}

// WriteNoteInput is the write_note tool input.
type WriteNoteInput struct {
	Path    string `json:"path" jsonschema:"vault-relative note path, must end in .md"`
	Content string `json:"content" jsonschema:"markdown content to write"`
	Section string `json:"section,omitempty" jsonschema:"heading text to target; content applies only to that section"`
	Replace bool   `json:"replace,omitempty" jsonschema:"replace the section body, or the whole note when no section is given, instead of appending"`
}

// WriteNoteOutput is the write_note tool output.
type WriteNoteOutput struct {
	Path    string `json:"path"`
	Written bool   `json:"written"`
}

func (s *Server) handleWriteNote(ctx context.Context, _ *mcp.CallToolRequest, input WriteNoteInput) (
	*mcp.CallToolResult, WriteNoteOutput, error,
) {
	if input.Path == "" {
		return nil, WriteNoteOutput{}, vxerrors.ValidationError("path is required", nil)
	}

	err := s.vault.Write(input.Path, input.Content, vault.WriteOptions{
		Section: input.Section,
		Replace: input.Replace,
	})
	if err != nil {
		return nil, WriteNoteOutput{}, err
	}

	s.logger.Info("note written via mcp",
		slog.String("path", input.Path),
		slog.String("section", input.Section))
	return nil, WriteNoteOutput{Path: input.Path, Written: true}, nil
}

// AppendDailyInput is the append_daily tool input.
type AppendDailyInput struct {
	Text string `json:"text" jsonschema:"entry text to append to today's daily note"`
}

// AppendDailyOutput is the append_daily tool output.
type AppendDailyOutput struct {
	Path string `json:"path" jsonschema:"path of the daily note that was written"`
}

func (s *Server) handleAppendDaily(ctx context.Context, _ *mcp.CallToolRequest, input AppendDailyInput) (
	*mcp.CallToolResult, AppendDailyOutput, error,
) {
	if input.Text == "" {
		return nil, AppendDailyOutput{}, vxerrors.ValidationError("text is required", nil)
	}

	path, err := s.vault.AppendDailyEntry(input.Text, time.Now())
	if err != nil {
		return nil, AppendDailyOutput{}, err
	}
	return nil, AppendDailyOutput{Path: path}, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 0 // engine default applies
	case n > 50:
		return 50
	default:
		return n
	}
}
