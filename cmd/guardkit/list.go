package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guardkit/guardkit/internal/modules"
)

// listCmd prints the available rule modules.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available rule modules",
	Long:  "List the rule modules in the module repository, in assembly order.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&modulesDir, "modules-dir", "modules", "rule module repository directory")
}

func runList(cmd *cobra.Command, _ []string) error {
	mods, warns, err := modules.Load(modulesDir)
	if err != nil {
		return exitError(ExitNothingProduced, "guardkit: %v", err)
	}
	for _, w := range warns {
		slog.Warn("skipping module", "id", w.ModuleID, "reason", w.Reason)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	dim := color.New(color.Faint)

	_, _ = fmt.Fprintln(tw, bold.Sprint("ID")+"\t"+bold.Sprint("PRIORITY")+"\t"+bold.Sprint("DEFAULT")+"\t"+bold.Sprint("DESCRIPTION"))

	for _, m := range mods {
		def := dim.Sprint("-")
		if m.DefaultEnabled {
			def = green.Sprint("yes")
		}
		desc := m.Description
		if m.ExclusiveGroup != "" {
			desc = fmt.Sprintf("%s (group: %s)", desc, m.ExclusiveGroup)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", m.ID, m.Priority, def, desc)
	}

	return tw.Flush()
}
