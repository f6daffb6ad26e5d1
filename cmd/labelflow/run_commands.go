package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"labelflow/internal/batch"
	"labelflow/internal/config"
	"labelflow/internal/logging"
	"labelflow/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the batch until it drains or an item fails",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, skipPreflight, func(machine *batch.Machine) error {
				return machine.Run(cmd.Context())
			})
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without running preflight checks")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var retryFailed bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue a paused or interrupted batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, skipPreflight, func(machine *batch.Machine) error {
				return machine.Resume(cmd.Context(), retryFailed)
			})
		},
	}

	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Return failed items to the queue before resuming")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without running preflight checks")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Ask an in-flight run to stop after the current item",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(runLockPath(cfg))
			free, err := lock.TryLock()
			if err == nil && free {
				_ = lock.Unlock()
				fmt.Fprintln(cmd.OutOrStdout(), "No batch run in progress")
				return nil
			}
			if err := os.WriteFile(cancelFilePath(cfg), []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
				return fmt.Errorf("write cancel request: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cancellation requested; the run stops after the current item and discards the remaining queue")
			return nil
		},
	}
}

func runBatch(cmd *cobra.Command, ctx *commandContext, skipPreflight bool, start func(*batch.Machine) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	lock := flock.New(runLockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another batch run is already in progress")
	}
	defer lock.Unlock()

	_ = os.Remove(cancelFilePath(cfg))

	if !skipPreflight {
		results := preflight.RunAll(cmd.Context(), cfg)
		if !preflight.AllPassed(results) {
			printPreflightResults(cmd, results)
			return fmt.Errorf("preflight failed; fix the environment or pass --skip-preflight")
		}
	}

	manager, _, prompt, err := ctx.newManager(cfg)
	if err != nil {
		return err
	}
	adapters, err := ctx.adapters(cfg)
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	store, err := batch.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	machine, err := batch.NewMachine(
		store,
		manager,
		adapters,
		prompt,
		logger,
		batch.WithStaleReset(time.Duration(cfg.Batch.StaleResetMinutes)*time.Minute),
		batch.WithErrorRetry(time.Duration(cfg.Batch.ErrorRetryInterval)*time.Second),
		batch.WithCancelCheck(func() bool {
			_, statErr := os.Stat(cancelFilePath(cfg))
			return statErr == nil
		}),
	)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(sigCtx)

	if err := start(machine); err != nil && !isCanceled(err) {
		return err
	}
	_ = os.Remove(cancelFilePath(cfg))

	snapshot, err := machine.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	printRunSummary(cmd, snapshot)
	return nil
}

func printRunSummary(cmd *cobra.Command, snapshot batch.Snapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d, failed %d, remaining %d (paused: %s)\n",
		len(snapshot.Processed), len(snapshot.Failed), len(snapshot.ToProcess), yesNo(snapshot.Paused))
	for _, item := range snapshot.Failed {
		fmt.Fprintf(out, "  failed %s: %s\n", item.ImageRef, item.ErrorMessage)
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func runLockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "labelflow.lock")
}
