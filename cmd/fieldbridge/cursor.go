package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/fieldbridge/internal/cursor"
)

var (
	cursorJSONOutput     bool
	cursorResetDirection string
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect and reset sync cursors",
	Long:  "List stored sync watermarks, or reset one so the next run is a full sync.",
}

func init() {
	cursorCmd.PersistentFlags().BoolVar(&cursorJSONOutput, "json", false,
		"Output in JSON format")

	cursorCmd.AddCommand(cursorListCmd)
	cursorCmd.AddCommand(cursorResetCmd)
}

var cursorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sync cursors",
	Args:  cobra.NoArgs,
	RunE:  runCursorList,
}

func runCursorList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	entries, err := env.cursors.List(ctx)
	if err != nil {
		return fmt.Errorf("list cursors: %w", err)
	}

	if cursorJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"cursors": entries,
			"total":   len(entries),
		})
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cursors stored; every entity will full-sync on its next run.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ENTITY\tDIRECTION\tLAST SUCCESS\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Entity,
			e.Direction,
			e.LastSuccess.Format("2006-01-02 15:04:05"),
			e.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	return nil
}

var cursorResetCmd = &cobra.Command{
	Use:   "reset <entity>",
	Short: "Reset stored cursors for an entity",
	Long:  "Delete the stored watermark so the next run re-reads all records. Resets both directions unless --direction is given.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCursorReset,
}

func init() {
	cursorResetCmd.Flags().StringVar(&cursorResetDirection, "direction", "",
		"Direction to reset: pull or push (default: both)")
}

func runCursorReset(cmd *cobra.Command, args []string) error {
	entity := args[0]
	ctx := context.Background()

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.registry.Get(entity); err != nil {
		return err
	}

	var directions []cursor.Direction
	switch cursorResetDirection {
	case "":
		directions = []cursor.Direction{cursor.DirectionPull, cursor.DirectionPush}
	case string(cursor.DirectionPull):
		directions = []cursor.Direction{cursor.DirectionPull}
	case string(cursor.DirectionPush):
		directions = []cursor.Direction{cursor.DirectionPush}
	default:
		return fmt.Errorf("invalid direction %q: use pull or push", cursorResetDirection)
	}

	for _, dir := range directions {
		if err := env.cursors.Reset(ctx, entity, dir); err != nil {
			return fmt.Errorf("reset %s %s cursor: %w", entity, dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %s cursor for %q\n", dir, entity)
	}

	return nil
}
