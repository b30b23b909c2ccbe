package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newResultsCmd() *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Manage stored diagnosis results",
		Long:  `List, inspect, and remove the diagnosis results kept in the configured store.`,
	}
	resultsCmd.AddCommand(newResultsLsCmd(), newResultsInspectCmd(), newResultsRmCmd())
	return resultsCmd
}

func newResultsLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			manager, closeStore, err := a.results(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			ids, err := manager.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing results: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No stored results found.")
				return nil
			}
			fmt.Fprintln(out, "Stored Results:")
			for _, id := range ids {
				fmt.Fprintln(out, "- "+id)
			}
			return nil
		},
	}
}

func newResultsInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <result-id>",
		Short: "Print a stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			manager, closeStore, err := a.results(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			record, err := manager.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error loading result '%s': %w", args[0], err)
			}

			data, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return fmt.Errorf("error marshaling result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newResultsRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <result-id>...",
		Short: "Remove one or more stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if !all && len(args) == 0 {
				return errors.New("requires at least 1 result id or --all")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			manager, closeStore, err := a.results(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if all {
				if args, err = manager.List(cmd.Context()); err != nil {
					return fmt.Errorf("error listing results: %w", err)
				}
			}

			var failed int
			out := cmd.OutOrStdout()
			for _, id := range args {
				if err := manager.Delete(cmd.Context(), id); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "Removed result '%s'\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("failed to remove %d result(s)", failed)
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Remove every stored result")
	return cmd
}
