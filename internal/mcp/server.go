// ABOUTME: MCP server initialization and configuration
// ABOUTME: Sets up server with solar time tools and resources for AI agents

package mcp

import (
	"context"
	"time"

	"github.com/harper/shichen/internal/clock"
	"github.com/harper/shichen/internal/provider"
	"github.com/harper/shichen/internal/solar"
	"github.com/harper/shichen/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with the solar time sources it exposes.
type Server struct {
	mcp      *mcp.Server
	provider provider.SituationProvider[solar.SolarTimeData]
	repo     storage.PositionRepository
	clock    clock.Clock
	zone     func() *time.Location
}

// Option configures a Server.
type Option func(*Server)

// WithHistory exposes recorded positions through the recent_positions tool.
func WithHistory(repo storage.PositionRepository) Option {
	return func(s *Server) { s.repo = repo }
}

// WithClock sets the time source used when a tool omits a time.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithZone sets the default civil time zone.
func WithZone(zone func() *time.Location) Option {
	return func(s *Server) { s.zone = zone }
}

// NewServer creates MCP server with all capabilities. p may be nil, in
// which case current_solar_time is not offered.
func NewServer(p provider.SituationProvider[solar.SolarTimeData], opts ...Option) *Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "shichen",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		provider: p,
		clock:    clock.Real(),
		zone:     func() *time.Location { return time.Local },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	s.registerResources()

	return s
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
