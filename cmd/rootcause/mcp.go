package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpAdapter "github.com/aretw0/rootcause/pkg/adapters/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the diagnosis engine over the Model Context Protocol",
		Long: `Exposes the diagnose and list_rules tools and the rootcause://rules
resource to MCP clients, over stdio (default) or SSE.`,
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
	cmd.Flags().String("transport", "stdio", "Transport: stdio or sse")
	cmd.Flags().Int("port", 8081, "Port for the SSE transport")
	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	if transport != "stdio" && transport != "sse" {
		return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	eng, err := a.engine()
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	srv := mcpAdapter.NewServer(eng, a.logger)
	if transport == "stdio" {
		return srv.ServeStdio()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	port, _ := cmd.Flags().GetInt("port")
	return srv.ServeSSE(ctx, fmt.Sprintf(":%d", port), fmt.Sprintf("http://localhost:%d", port))
}
