package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"surge/internal/buildpipeline"
	"surge/internal/di"
	"surge/internal/diag"
	"surge/internal/diagfmt"
	"surge/internal/driver"
	"surge/internal/project"
	"surge/internal/source"
)

var diCmd = &cobra.Command{
	Use:   "di [flags] <file.sg>",
	Short: "Run definite-initialization checking on a surge source file",
	Long:  `Compile a surge source file through MIR and check every declared-without-initializer variable and self receiver for definite initialization.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDI,
}

func init() {
	diCmd.Flags().Int("jobs", 0, "max parallel workers across functions (0=auto)")
	diCmd.Flags().Bool("disable-conditional-destroy", false, "reject ambiguous initialization instead of inserting a runtime liveness check")
	diCmd.Flags().Bool("warn-partial-let", false, "warn instead of silently accepting a partial store into a let-bound aggregate element")
	diCmd.Flags().Bool("explain", false, "print each diagnostic's code alongside its message, colorized")
	diCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
	diCmd.Flags().Bool("cache", false, "cache per-function DI outcomes on disk, keyed by function content, so unchanged functions skip re-checking (experimental)")
}

func runDI(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	targetPath := args[0]

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	disableConditionalDestroy, err := cmd.Flags().GetBool("disable-conditional-destroy")
	if err != nil {
		return fmt.Errorf("failed to get disable-conditional-destroy flag: %w", err)
	}
	warnPartialLet, err := cmd.Flags().GetBool("warn-partial-let")
	if err != nil {
		return fmt.Errorf("failed to get warn-partial-let flag: %w", err)
	}
	explain, err := cmd.Flags().GetBool("explain")
	if err != nil {
		return fmt.Errorf("failed to get explain flag: %w", err)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	enableCache, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return fmt.Errorf("failed to get cache flag: %w", err)
	}

	if manifestPath, ok, findErr := findSurgeToml("."); findErr == nil && ok {
		if fileOpts, cfgErr := project.LoadDIConfig(manifestPath); cfgErr == nil {
			// surge.toml sets the project default; an explicit flag on this
			// invocation always wins.
			if !cmd.Flags().Changed("disable-conditional-destroy") {
				disableConditionalDestroy = fileOpts.DisableConditionalDestroy
			}
			if !cmd.Flags().Changed("warn-partial-let") {
				warnPartialLet = fileOpts.WarnOnPartialStoreIntoLet
			}
			if !cmd.Root().PersistentFlags().Changed("max-diagnostics") && fileOpts.MaxDiagnosticsPerFunction > 0 {
				maxDiagnostics = fileOpts.MaxDiagnosticsPerFunction
			}
		}
	}

	opts := di.Options{
		DisableConditionalDestroy: disableConditionalDestroy,
		WarnOnPartialStoreIntoLet: warnPartialLet,
	}

	compileReq := &buildpipeline.CompileRequest{
		TargetPath:     targetPath,
		MaxDiagnostics: maxDiagnostics,
	}

	var (
		compileRes buildpipeline.CompileResult
		results    []driver.DIFuncResult
	)
	if shouldUseTUI(uiModeValue) {
		outcome, runErr := runDICheckWithUI(cmd.Context(), "surge di", []string{targetPath}, compileReq, maxDiagnostics, jobs, opts)
		compileRes, results, err = outcome.compile, outcome.results, runErr
	} else {
		compileRes, err = buildpipeline.Compile(cmd.Context(), compileReq)
		if err == nil {
			if compileRes.MIR == nil {
				err = fmt.Errorf("MIR not available")
			} else {
				results, err = driver.RunDI(cmd.Context(), compileRes.MIR, compileRes.Diagnose.Sema.TypeInterner, maxDiagnostics, jobs, opts)
			}
		}
	}

	if compileRes.Diagnose != nil && compileRes.Diagnose.Bag != nil && compileRes.Diagnose.Bag.HasErrors() {
		for _, d := range compileRes.Diagnose.Bag.Items() {
			fmt.Fprintln(os.Stderr, d.Message)
		}
		os.Exit(1)
	}
	if err != nil {
		return fmt.Errorf("definite-initialization checking failed: %w", err)
	}

	bag := driver.MergeDIResults(results)
	var fileSet *source.FileSet
	if compileRes.Diagnose != nil {
		fileSet = compileRes.Diagnose.FileSet
	}
	printDIBag(bag, fileSet, explain)

	for _, r := range results {
		if r.Invariant != nil {
			return fmt.Errorf("di: %s: %w", r.FuncName, r.Invariant)
		}
	}
	if bag.HasErrors() {
		os.Exit(1)
	}
	return nil
}

var diCodeColor = color.New(color.FgHiBlack)

// printDIBag writes bag through diagfmt.Pretty; with --explain it first
// prints each diagnostic's code in dimmed text ahead of the normal pretty
// rendering, similarly to how diagCmd's own --suggest output annotates
// fixes inline rather than replacing the pretty formatter.
func printDIBag(bag *diag.Bag, fileSet *source.FileSet, explain bool) {
	if explain {
		for _, d := range bag.Items() {
			fmt.Fprintf(os.Stdout, "%s %s\n", diCodeColor.Sprintf("[%s]", d.Code.ID()), d.Code.Title())
		}
	}

	diagfmt.Pretty(os.Stdout, bag, fileSet, diagfmt.PrettyOpts{
		Color:     true,
		ShowNotes: true,
	})
}
