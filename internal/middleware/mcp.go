package middleware

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/terraphim/kgsearchd/internal/types"
)

// MCPIndexer queries an external Model Context Protocol server's "search"
// tool and converts the result into documents. Grounded on the official SDK
// usage in the teacher's MCP host (internal/mcp/mcphost): a single
// [mcpsdk.Client] connects over stdio or streamable HTTP, and tool
// invocation goes through [mcpsdk.ClientSession.CallTool], concatenating the
// returned [mcpsdk.TextContent] blocks.
//
// haystack.Location is the command line (stdio transport, when it doesn't
// look like a URL) or endpoint URL (streamable-HTTP transport);
// haystack.Extra["tool"] names the search tool to call, defaulting to
// "search".
type MCPIndexer struct {
	client  *mcpsdk.Client
	session *mcpsdk.ClientSession
	tool    string
}

// NewMCPIndexer connects to the MCP server described by haystack and records
// which tool Index calls. It does not list the server's tools, so a missing
// tool surfaces only as an error from Index.
func NewMCPIndexer(haystack types.Haystack) (*MCPIndexer, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "kgsearchd", Version: "1.0.0"}, nil)

	var transport mcpsdk.Transport
	if strings.HasPrefix(haystack.Location, "http://") || strings.HasPrefix(haystack.Location, "https://") {
		transport = &mcpsdk.StreamableClientTransport{Endpoint: haystack.Location}
	} else {
		executable, args := splitCommand(haystack.Location)
		if executable == "" {
			return nil, fmt.Errorf("mcp: haystack %q has no command to run", haystack.Location)
		}
		transport = &mcpsdk.CommandTransport{Command: exec.CommandContext(context.Background(), executable, args...)}
	}

	session, err := client.Connect(context.Background(), transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect to %q: %w", haystack.Location, err)
	}

	tool := haystack.Extra["tool"]
	if tool == "" {
		tool = "search"
	}
	return &MCPIndexer{client: client, session: session, tool: tool}, nil
}

func (m *MCPIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	result, err := m.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      m.tool,
		Arguments: map[string]any{"query": needle},
	})
	if err != nil {
		return types.Index{}, fmt.Errorf("mcp: call tool %q: %w", m.tool, err)
	}
	if result.IsError {
		return types.Index{}, fmt.Errorf("mcp: tool %q returned an error result", m.tool)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
			sb.WriteString("\n")
		}
	}

	idx := types.NewIndex()
	body := sb.String()
	if body != "" {
		idx.Insert(types.Document{
			ID:    m.tool + ":" + needle,
			Title: needle,
			Body:  body,
		})
	}
	return idx, nil
}

// splitCommand splits a shell-style command line into its executable and
// arguments on whitespace. It does not handle quoting.
func splitCommand(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
