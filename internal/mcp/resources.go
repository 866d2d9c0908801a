// ABOUTME: MCP resource definitions
// ABOUTME: Provides the read-only earthly branch reference table for AI agents

package mcp

import (
	"context"
	"encoding/json"

	"github.com/harper/shichen/internal/solar"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// BranchesURI is the resource listing the twelve earthly branches.
const BranchesURI = "shichen://branches"

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        BranchesURI,
		Description: "The twelve earthly branches with hanzi, animal, element, sovereign hexagram, and start minute",
		URI:         BranchesURI,
		MIMEType:    "application/json",
	}, s.handleBranchesResource)
}

func (s *Server) handleBranchesResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	jsonBytes, _ := json.MarshalIndent(solar.Branches(), "", "  ") //nolint:errchkjson // output is always serializable

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      BranchesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		},
	}, nil
}
