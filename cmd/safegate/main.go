// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"safegate/internal/diag"
	"safegate/internal/feature"
	"safegate/internal/interp"
	"safegate/internal/ir"
	"safegate/internal/passes"
	"safegate/internal/pipeline"
	"safegate/internal/sir"
)

var (
	class1       bool
	class2       bool
	class3       bool
	seed         uint64
	seedSet      bool
	dummySlots   int
	dummySet     bool
	featuresPath string
	randomScopes []string
	runEntry     string
	verbose      bool
)

func main() {
	root := &cobra.Command{
		Use:   "safegate <file.sir>",
		Short: "Safety-class-gated transformation of textual IR modules",
		Long: `safegate runs the safety-class-gated pass pipeline over a textual IR
module. Selecting a class enables its feature set: class 1 is strictest,
class 3 weakest, and every class is a superset of the next weaker one.
Without a class flag no feature is active and the baseline optimizers
run unrestricted.`,
		Args: cobra.ExactArgs(1),
		RunE: run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.Flags().BoolVar(&class1, "class1", false, "select safety class 1 (strictest)")
	root.Flags().BoolVar(&class2, "class2", false, "select safety class 2")
	root.Flags().BoolVar(&class3, "class3", false, "select safety class 3 (weakest)")
	root.MarkFlagsMutuallyExclusive("class1", "class2", "class3")
	root.Flags().Uint64Var(&seed, "seed", 0, "layout randomizer seed")
	root.Flags().IntVar(&dummySlots, "dummy-slots", 0, "dummy stack slots to interleave per function")
	root.Flags().StringVar(&featuresPath, "features", "", "declarative feature table (YAML) replacing the built-in one")
	root.Flags().StringSliceVar(&randomScopes, "randomize", nil, "randomization scopes: funcs, globals, locals")
	root.Flags().StringVar(&runEntry, "run", "", "execute the named function after the pipeline")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := root.Execute(); err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		commonlog.Configure(1, nil)
	} else {
		commonlog.Configure(0, nil)
	}
	seedSet = cmd.Flags().Changed("seed")
	dummySet = cmd.Flags().Changed("dummy-slots")

	startTime := time.Now()
	path := args[0]

	module, err := sir.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	registry := feature.Default()
	if featuresPath != "" {
		f, err := os.Open(featuresPath)
		if err != nil {
			return err
		}
		defer f.Close()
		registry = feature.NewRegistry()
		if err := registry.LoadTable(f); err != nil {
			return err
		}
	}

	var cfg *feature.SafetyClassConfig
	if level := selectedLevel(); level != 0 {
		cfg, err = feature.Resolve(level, registry)
		if err != nil {
			return err
		}
		if seedSet {
			cfg.RandomSeed = &seed
		}
	}

	scope, err := parseScopes(randomScopes)
	if err != nil {
		return err
	}
	opts := passes.Options{RandomizeScope: scope}
	if dummySet {
		opts.DummySlots = &dummySlots
	}

	ctx := pipeline.NewContext(cfg, module)
	if err := passes.NewDefaultPipeline(opts).Run(ctx); err != nil {
		printDiagnostics(ctx.Diags.Diagnostics())
		color.Red("Compilation of %s failed after %s", path, formatDuration(time.Since(startTime)))
		os.Exit(1)
	}
	printDiagnostics(ctx.Diags.Diagnostics())

	module.ForEachInstr(func(fn *ir.Function, _ *ir.BasicBlock, in *ir.Instr) {
		if in.Op == ir.OpGuard {
			ctx.Diags.Errorf(diag.ErrorUnexpandedGuard, fn.Name, "guard.%s reached code generation", in.GuardOp)
		}
	})
	if err := ctx.Diags.Err(); err != nil {
		color.Red("%s", err)
		os.Exit(2)
	}

	fmt.Print(ir.Print(module))

	if runEntry != "" {
		result, err := interp.New(module).Run(runEntry)
		if err != nil {
			color.Red("%s", err)
			os.Exit(3)
		}
		fmt.Printf("%s() = %d\n", runEntry, result)
	}

	color.Green("Successfully processed %s in %s", path, formatDuration(time.Since(startTime)))
	return nil
}

func selectedLevel() int {
	switch {
	case class1:
		return 1
	case class2:
		return 2
	case class3:
		return 3
	}
	return 0
}

func parseScopes(names []string) (passes.Scope, error) {
	var scope passes.Scope
	for _, n := range names {
		switch strings.TrimSpace(n) {
		case "":
		case "funcs":
			scope |= passes.ScopeFunctions
		case "globals":
			scope |= passes.ScopeGlobals
		case "locals":
			scope |= passes.ScopeLocals
		default:
			return 0, fmt.Errorf("unknown randomization scope %q, valid scopes are funcs, globals, locals", n)
		}
	}
	return scope, nil
}

func printDiagnostics(diags []diag.Diagnostic) {
	for _, d := range diags {
		switch d.Severity {
		case diag.Error:
			color.Red("%s", d)
		case diag.Warning:
			color.Yellow("%s", d)
		default:
			fmt.Println(d)
		}
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
