package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/fieldbridge/internal/engine"
)

var (
	runAll    bool
	runPull   bool
	runPush   bool
	runSync   bool
	runDryRun bool
	runSince  bool
	runForce  bool
	runLimit  int
	runJSON   bool
)

var runCmd = &cobra.Command{
	Use:   "run [entity]",
	Short: "Run a sync for one entity or all entities",
	Long:  "Run a pull, push, or bidirectional sync without starting the server. Defaults to pull.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "Sync every registered entity")
	runCmd.Flags().BoolVar(&runPull, "pull", false, "Pull external changes into the local store")
	runCmd.Flags().BoolVar(&runPush, "push", false, "Push local changes to the external platform")
	runCmd.Flags().BoolVar(&runSync, "sync", false, "Pull then push (bidirectional)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Report what would change without writing")
	runCmd.Flags().BoolVar(&runSince, "since", false, "Sync from the stored cursor (the default)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Ignore the stored cursor and resync from scratch")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Cap the number of source records (0 = no limit)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output in JSON format")
}

func runRun(cmd *cobra.Command, args []string) error {
	mode, err := resolveMode()
	if err != nil {
		return err
	}
	if len(args) == 0 && !runAll {
		return fmt.Errorf("specify an entity or --all")
	}
	if len(args) == 1 && runAll {
		return fmt.Errorf("--all cannot be combined with an entity argument")
	}
	if runSince && runForce {
		return fmt.Errorf("--since and --force are mutually exclusive")
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	entities := args
	if runAll {
		entities = env.registry.Names()
	}

	opts := engine.Options{
		Mode:   mode,
		DryRun: runDryRun,
		Limit:  runLimit,
		Force:  runForce,
	}

	var reports []*engine.Report
	for _, entity := range entities {
		report, err := env.engine.Run(ctx, entity, opts)
		if err != nil {
			return fmt.Errorf("sync %s: %w", entity, err)
		}
		reports = append(reports, report)
	}

	if runJSON {
		if len(reports) == 1 {
			return printJSON(cmd.OutOrStdout(), reports[0])
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"runs":  reports,
			"total": len(reports),
		})
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ENTITY\tPHASE\tQUERIED\tAPPLIED\tSKIPPED\tCONFLICTS\tFAILED\tCURSOR")
	for _, report := range reports {
		for _, phase := range []*engine.PhaseReport{report.Pull, report.Push} {
			if phase == nil {
				continue
			}
			cursorCol := "-"
			if phase.CursorAdvanced {
				cursorCol = phase.Cursor.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
				report.Entity,
				phase.Direction,
				phase.Queried,
				phase.Succeeded,
				phase.Skipped,
				phase.Conflicts,
				phase.Failed,
				cursorCol,
			)
		}
	}
	w.Flush()

	for _, report := range reports {
		printSamples(cmd, report.Pull)
		printSamples(cmd, report.Push)
	}

	var failed int
	for _, report := range reports {
		failed += report.TotalFailed()
	}
	if failed > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d record(s) failed; cursors for failed phases were not advanced\n", failed)
	}
	if runDryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run: nothing was written.")
	}
	return nil
}

func printSamples(cmd *cobra.Command, phase *engine.PhaseReport) {
	if phase == nil {
		return
	}
	for _, s := range phase.SkipSample {
		fmt.Fprintf(cmd.ErrOrStderr(), "skip (%s): %s\n", phase.Direction, s)
	}
	for _, s := range phase.FailureSample {
		fmt.Fprintf(cmd.ErrOrStderr(), "fail (%s): %s\n", phase.Direction, s)
	}
}

func resolveMode() (engine.Mode, error) {
	var (
		mode  = engine.ModePull
		count int
	)
	if runPull {
		mode = engine.ModePull
		count++
	}
	if runPush {
		mode = engine.ModePush
		count++
	}
	if runSync {
		mode = engine.ModeBidirectional
		count++
	}
	if count > 1 {
		return "", fmt.Errorf("--pull, --push, and --sync are mutually exclusive")
	}
	return mode, nil
}
