package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/rootcause/internal/presentation/graph"
	"github.com/aretw0/rootcause/internal/presentation/tui"
	loamAdapter "github.com/aretw0/rootcause/pkg/adapters/loam"
	"github.com/aretw0/rootcause/pkg/diagnosis"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/trace"
)

func newDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose <trace>...",
		Short: "Diagnose one or more traces",
		Long: `Loads invocation trees (JSON or YAML files, chosen by extension), runs the
diagnosis rules on each and prints the reports.

With --vault the arguments are document IDs of a Loam repository instead
of file paths.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDiagnose,
	}
	cmd.Flags().StringArray("var", nil, "Session variable as name=value (repeatable)")
	cmd.Flags().Bool("save", false, "Persist the reports in the configured result store")
	cmd.Flags().Bool("compact", false, "Print JSON without indentation")
	cmd.Flags().StringP("format", "f", "json", "Output format: json, markdown or mermaid")
	cmd.Flags().String("vault", "", "Read traces by ID from the Loam repository at this directory")
	return cmd
}

func parseVars(pairs []string) (domain.SessionVariables, error) {
	vars := domain.SessionVariables{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q: want name=value", pair)
		}
		vars[name] = value
	}
	return vars, nil
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	pairs, _ := cmd.Flags().GetStringArray("var")
	vars, err := parseVars(pairs)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json", "markdown", "mermaid":
	default:
		return fmt.Errorf("unknown format %q (want json, markdown or mermaid)", format)
	}

	roots, err := loadTraces(cmd, args)
	if err != nil {
		return err
	}

	eng, err := a.engine()
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	reports, err := eng.DiagnoseAll(cmd.Context(), roots, vars)
	if err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		if err := saveReports(cmd, a, args, reports); err != nil {
			return err
		}
	}

	switch format {
	case "markdown":
		return printMarkdown(cmd, reports)
	case "mermaid":
		for i, report := range reports {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(report.Derivation, diagnosis.Label))
		}
		return nil
	}

	var out any = reports
	if len(reports) == 1 {
		out = reports[0]
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	if compact, _ := cmd.Flags().GetBool("compact"); !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

func loadTraces(cmd *cobra.Command, args []string) ([]*trace.Invocation, error) {
	load := func(path string) (*trace.Invocation, error) { return trace.Load(path) }
	if vault, _ := cmd.Flags().GetString("vault"); vault != "" {
		lib, err := loamAdapter.Open(vault)
		if err != nil {
			return nil, err
		}
		load = func(id string) (*trace.Invocation, error) { return lib.Load(cmd.Context(), id) }
	}

	roots := make([]*trace.Invocation, len(args))
	for i, arg := range args {
		root, err := load(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, err)
		}
		roots[i] = root
	}
	return roots, nil
}

// printMarkdown writes the reports as Markdown, styled when stdout is a terminal.
func printMarkdown(cmd *cobra.Command, reports []*diagnosis.Report) error {
	docs := make([]string, len(reports))
	for i, report := range reports {
		docs[i] = diagnosis.Markdown(report)
	}
	md := strings.Join(docs, "\n---\n\n")

	if tui.IsTerminal(cmd.OutOrStdout()) {
		render, err := tui.NewRenderer()
		if err != nil {
			return err
		}
		if md, err = render(md); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), md)
	return err
}

func saveReports(cmd *cobra.Command, a *app, paths []string, reports []*diagnosis.Report) error {
	manager, closeStore, err := a.results(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	for i, report := range reports {
		data, err := json.Marshal(report)
		if err != nil {
			return err
		}
		record := &domain.Record{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Source:    paths[i],
			Result:    data,
		}
		if err := manager.Save(cmd.Context(), record); err != nil {
			return fmt.Errorf("failed to save report for %s: %w", paths[i], err)
		}
		a.logger.Info("Saved diagnosis", "id", record.ID, "source", paths[i])
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %s -> %s\n", paths[i], record.ID)
	}
	return nil
}
