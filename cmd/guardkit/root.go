package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guardkit/guardkit/internal/assemble"
	guardlog "github.com/guardkit/guardkit/internal/log"
	"github.com/guardkit/guardkit/internal/selection"
	"github.com/guardkit/guardkit/internal/wizard"
)

// Global flag values.
var (
	verbose bool
	quiet   bool
	noColor bool
)

// Install flag values.
var (
	installAll bool
	modulesDir string
	outputDir  string
	targetDir  string
	plainMode  bool
)

// rootCmd runs the install wizard. With explicit module ids or --all it runs
// headless and only writes local artifacts.
var rootCmd = &cobra.Command{
	Use:   "guardkit [module-id ...]",
	Short: "Assemble TDD Guard rule modules and wire them into a project",
	Long: `Guardkit assembles Markdown rule modules into the combined instruction
document the tdd-guard hook enforces, and configures a target project's
Claude settings to run the hook. With no arguments it walks you through an
interactive setup; pass module ids or --all to run non-interactively.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		guardlog.Setup(verbose, quiet)
		if noColor {
			color.NoColor = true
		}
	},
	RunE: runInstall,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.Flags().BoolVar(&installAll, "all", false, "select every available module")
	rootCmd.Flags().StringVar(&modulesDir, "modules-dir", "modules", "rule module repository directory")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "generated", "directory for generated documents")
	rootCmd.Flags().StringVar(&targetDir, "target", "", "project to integrate with (skips discovery)")
	rootCmd.Flags().BoolVar(&plainMode, "plain", false, "force plain text prompts")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if installAll && len(args) > 0 {
		return exitError(ExitInvalidArgs, "guardkit: --all cannot be combined with explicit module ids")
	}

	mode := selection.ModeInteractive
	switch {
	case installAll:
		mode = selection.ModeAll
	case len(args) > 0:
		mode = selection.ModeList
	}

	summary, err := wizard.Run(cmd.Context(), wizard.Options{
		ModulesDir: modulesDir,
		OutputDir:  outputDir,
		Target:     targetDir,
		Mode:       mode,
		IDs:        args,
		Plain:      plainMode,
		In:         os.Stdin,
		Out:        os.Stdout,
	})
	if err != nil {
		if errors.Is(err, wizard.ErrNothingProduced) {
			return exitError(ExitNothingProduced, "guardkit: %v", err)
		}
		return exitError(ExitInvalidArgs, "guardkit: %v", err)
	}

	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

// printSummary renders the run outcome. IDE sub-step failures show here but
// never change the exit code.
func printSummary(w io.Writer, s *wizard.Summary) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("Modules:"), strings.Join(s.Selected, ", "))
	if len(s.ForcedAuto) > 0 {
		_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("Auto-included for model:"), strings.Join(s.ForcedAuto, ", "))
	}
	if len(s.ForcedMandatory) > 0 {
		_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("Mandatory for model:"), strings.Join(s.ForcedMandatory, ", "))
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("Model:"), s.ModelID)

	_, _ = fmt.Fprintf(w, "%s %s (%d lines)\n", bold.Sprint("Instructions:"), s.InstructionsPath, s.LineCount)
	if s.SizeWarning {
		_, _ = fmt.Fprintf(w, "%s\n", yellow.Sprintf("  instructions exceed %d lines; consider fewer modules", assemble.SizeWarningThreshold))
	}
	if s.ScenariosPath != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("Scenarios:"), s.ScenariosPath)
	}
	if s.ConfigSaved {
		_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("Saved config:"), s.ConfigPath)
	}

	if s.TargetPath != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("Target:"), s.TargetPath)
	}
	if s.Pip != nil {
		status := green.Sprint("installed")
		if !s.Pip.OK {
			status = red.Sprint("failed")
		}
		_, _ = fmt.Fprintf(w, "%s %s %s\n", bold.Sprint("Companion package:"), s.PipPackage, status)
	}
	if s.Apply != nil {
		if s.Apply.OK() {
			_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("IDE integration:"), green.Sprint("ok"))
		} else {
			_, _ = fmt.Fprintf(w, "%s %s\n", bold.Sprint("IDE integration:"), yellow.Sprint("partial"))
			for _, msg := range s.Apply.Errors {
				_, _ = fmt.Fprintf(w, "  %s %s\n", red.Sprint("!"), msg)
			}
		}
		if s.Apply.BackupPath != "" {
			_, _ = fmt.Fprintf(w, "  previous settings preserved at %s\n", s.Apply.BackupPath)
		}
		if len(s.Apply.RemovedIgnorePatterns) > 0 {
			_, _ = fmt.Fprintf(w, "  ignore patterns removed: %s\n", strings.Join(s.Apply.RemovedIgnorePatterns, ", "))
		}
	}
}
