package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/manifestcheck/internal/config"
	"github.com/JonMunkholm/manifestcheck/internal/core"
	"github.com/JonMunkholm/manifestcheck/internal/logging"
	"github.com/JonMunkholm/manifestcheck/internal/parser"
	"github.com/JonMunkholm/manifestcheck/internal/web/views"
)

var errBelowMinimum = errors.New("score below minimum")

// app carries the service across commands. Tests set svc directly.
type app struct {
	svc  *core.Service
	pool *pgxpool.Pool
}

func newRootCommand(a *app) *cobra.Command {
	var envFile, logLevel string
	cmd := &cobra.Command{
		Use:           "manifestctl",
		Short:         "Check trade manifests for customs compliance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.svc != nil {
				return nil
			}
			return a.init(cmd.Context(), envFile, logLevel)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.pool != nil {
				a.pool.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load if present")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")

	cmd.AddCommand(newAnalyzeCommand(a))
	cmd.AddCommand(newCorrectCommand(a))
	cmd.AddCommand(newFixCommand(a))
	return cmd
}

func (a *app) init(ctx context.Context, envFile, logLevel string) error {
	if envFile != "" {
		// A missing file is fine; the environment may already be set.
		_ = godotenv.Load(envFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	// Logs go to stderr so documents can be piped from stdout.
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if ctx == nil {
		ctx = context.Background()
	}
	a.pool, err = core.OpenPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	a.svc, err = core.NewServiceFromConfig(ctx, cfg, a.pool, nil)
	return err
}

func newAnalyzeCommand(a *app) *cobra.Command {
	var (
		narrative bool
		persist   bool
		html      bool
		minScore  int
	)
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Print the compliance report for a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rep, err := a.svc.Analyze(cmd.Context(), filepath.Base(args[0]), data, core.AnalyzeOptions{
				Persist:   persist,
				Narrative: narrative,
			})
			if err != nil {
				return core.NewUserError(err)
			}

			if html {
				err = views.ReportPage(rep).Render(cmd.Context(), cmd.OutOrStdout())
			} else {
				err = printJSON(cmd.OutOrStdout(), rep)
			}
			if err != nil {
				return err
			}
			if rep.Score < minScore {
				return fmt.Errorf("%w: %d < %d", errBelowMinimum, rep.Score, minScore)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&narrative, "narrative", false, "Ask the collaborator to write the summary")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save the report")
	cmd.Flags().BoolVar(&html, "html", false, "Render the report as an HTML page")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Exit non-zero when the score is below this value")
	return cmd
}

func newCorrectCommand(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "correct FILE",
		Short: "Apply automatic fixes and write the regenerated manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := a.svc.Correct(cmd.Context(), filepath.Base(args[0]), data, format)
			if err != nil {
				return core.NewUserError(err)
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(out.Content)
			} else {
				err = os.WriteFile(output, out.Content, 0o644)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d issues fixed, %d duplicates removed\n",
				out.FileName, out.IssuesFixed, out.DuplicatesRemoved)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: csv, xml, edi, txt, pdf or json (default: input format)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newFixCommand(a *app) *cobra.Command {
	var score int
	cmd := &cobra.Command{
		Use:   "fix FILE",
		Short: "Run the fix loop on one JSON record (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			var record map[string]any
			if err := json.Unmarshal(data, &record); err != nil {
				return core.NewUserError(fmt.Errorf("%w: %w", core.ErrInvalidRequest, err))
			}
			req := core.FixRequest{Record: record, Keys: parser.ObjectKeys(data, ""), Score: score}
			res, err := a.svc.Fix(cmd.Context(), req)
			if err != nil {
				return core.NewUserError(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&score, "score", 0, "Score previously reported for the record (logged only)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
