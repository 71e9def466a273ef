package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/adapters/mcp"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp SOURCE",
	Short: "Run a simulated population behind a Model Context Protocol server",
	Long: `Attaches --entities entities, advances them every --interval with scripted conditions
and lets AI agents inspect and control them as MCP tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Logs go to stderr.
- sse: Uses Server-Sent Events over HTTP on --port.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		count, _ := cmd.Flags().GetInt("entities")
		interval, _ := cmd.Flags().GetDuration("interval")
		initial, _ := cmd.Flags().GetString("initial")
		trueNames, _ := cmd.Flags().GetStringSlice("true")
		at, _ := cmd.Flags().GetStringArray("at")

		if transport != "stdio" && transport != "sse" {
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
		script, err := cli.ParseScript(trueNames, at)
		if err != nil {
			return err
		}
		eng, err := cli.CreateEngine(cmd.Context(), args[0], logger, debugEnabled(cmd),
			arbor.WithHistoryLimit(env.HistoryLimit))
		if err != nil {
			return err
		}
		if err := script.Register(eng); err != nil {
			return err
		}
		if initial == "" {
			roots := eng.Tree().Roots()
			if len(roots) == 0 {
				return fmt.Errorf("tree has no states")
			}
			initial = string(roots[0])
		}

		pop := cli.NewPopulation(eng, eng.Name, count, interval, logger)
		if err := pop.Attach(cmd.Context(), domain.StateID(initial)); err != nil {
			return err
		}
		start, err := pop.NextTick(cmd.Context())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		popDone := make(chan error, 1)
		go func() {
			popDone <- pop.Run(ctx, start)
		}()
		defer func() {
			stop()
			<-popDone
		}()

		srv := mcp.NewServer(eng, Version, logger)
		switch transport {
		case "sse":
			logger.Info("Starting arbor MCP server (SSE)", "port", port)
			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mcp server: %w", err)
			}
			logger.Info("MCP server stopped gracefully")
			return nil
		default:
			logger.Info("Starting arbor MCP server (stdio)")
			return srv.ServeStdio()
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
	mcpCmd.Flags().Int("entities", 10, "Number of simulated entities")
	mcpCmd.Flags().Duration("interval", time.Second, "Tick interval")
	mcpCmd.Flags().String("initial", "", "Initial state (defaults to the first root)")
	mcpCmd.Flags().StringSlice("true", nil, "Conditions that start true")
	mcpCmd.Flags().StringArray("at", nil, "Switch a condition at a tick: TICK:NAME=BOOL")
}
