package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/axonforge/engine/internal/config"
)

// buildRunCmd creates the "run" command: process a single goal, or drop
// into an interactive prompt loop, against an in-process App (no HTTP
// server, no scheduler/autoloop ticking).
func buildRunCmd() *cobra.Command {
	var (
		configPath  string
		goalText    string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process a goal through the orchestrator",
		Long: `Process a single goal and print the result, or with --interactive,
read goals from stdin one per line until EOF.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			app, err := NewApp(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if interactive {
				return runInteractive(ctx, app, cmd.InOrStdin(), out)
			}
			if strings.TrimSpace(goalText) == "" {
				return fmt.Errorf("--goal is required unless --interactive is set")
			}
			resp := app.orchestrator.Process(ctx, goalText)
			printResponse(out, resp.Result, resp.Success, resp.Error)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&goalText, "goal", "g", "", "Goal text to process")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read goals from stdin, one per line")
	return cmd
}

func runInteractive(ctx context.Context, app *App, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "AxonForge interactive mode. Type a goal and press Enter; Ctrl-D to exit.")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resp := app.orchestrator.Process(ctx, line)
		printResponse(out, resp.Result, resp.Success, resp.Error)
	}
	return scanner.Err()
}

func printResponse(out io.Writer, result string, success bool, errText string) {
	if success {
		fmt.Fprintln(out, result)
		return
	}
	fmt.Fprintf(out, "error: %s\n", errText)
}

// buildStatusCmd prints a snapshot of the registry and event bus sizes
// without starting the scheduler or autoloop.
func buildStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tool registry and event bus status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx := cmd.Context()
			app, err := NewApp(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tools registered: %d\n", len(app.registry.List()))
			fmt.Fprintf(out, "Events buffered:  %d\n", app.bus.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}
