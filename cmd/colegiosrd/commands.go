package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/colegiosrd/internal/core"
	"github.com/JonMunkholm/colegiosrd/internal/web"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import schools from the MINERD extract",
		Long: `Reads the local MINERD export (or the open-data API when the file is
absent), validates every record, holds back likely duplicates for review and
upserts the rest. Prints a summary when done. Per-record failures are listed
in the summary and do not change the exit code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := core.ContextWithTrigger(cmd.Context(), core.TriggerCLI)
			summary, err := a.svc.RunImport(ctx)
			if summary != nil {
				if werr := summary.WriteReport(cmd.OutOrStdout()); werr != nil {
					slog.Error("failed to print summary", "error", werr)
				}
			}
			if errors.Is(err, core.ErrFetchExisting) {
				return withCode(exitDB, err)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and check for duplicates without writing anything")
	return cmd
}

func newRatingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ratings",
		Short: "Recalculate the rating of every school",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, (*core.Service).RecalculateRatings)
		},
	}
}

func newTopPublicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "top-public",
		Short: "Flag the best public schools in each province",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, (*core.Service).UpdateTopPublic)
		},
	}
}

// runJob runs a maintenance job and prints its summary. Failures on single
// schools are in the summary; only failing to list schools is an error.
func runJob(cmd *cobra.Command, job func(*core.Service, context.Context) (*core.JobSummary, error)) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := job(a.svc, cmd.Context())
	if summary != nil {
		if werr := summary.WriteReport(cmd.OutOrStdout()); werr != nil {
			slog.Error("failed to print summary", "error", werr)
		}
	}
	return err
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API for triggering imports and jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cfg.ValidateServe(); err != nil {
				return withCode(exitConfig, err)
			}

			server := web.NewServer(a.svc, a.cfg, a.pool)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server: %w", err)
			case <-cmd.Context().Done():
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			slog.Info("server stopped")
			return nil
		},
	}
}
