package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
	"github.com/lattice-lang/lattice/internal/config"
	"github.com/lattice-lang/lattice/internal/interp"
	"github.com/lattice-lang/lattice/internal/parser"
)

// newRunCmd creates the run command.
func newRunCmd() *cobra.Command {
	var fnName string
	var argPairs []string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a document",
		Long: `Execute a Lattice document once and print its output.

Component documents render their markup; application documents call the
function named with --fn; job documents run their body inline.`,
		Args: cobra.ExactArgs(1),
		Example: `  lattice run card.ltc --arg title=Hello
  lattice run shop.ltc --fn getUser --arg id=42
  lattice run cleanup.ltc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], fnName, argPairs)
		},
	}

	cmd.Flags().StringVar(&fnName, "fn", "", "function to call (application documents)")
	cmd.Flags().StringArrayVar(&argPairs, "arg", nil, "call argument as key=value (repeatable)")
	return cmd
}

func runRun(cmd *cobra.Command, filename, fnName string, argPairs []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	callArgs, err := parseArgs(argPairs)
	if err != nil {
		return err
	}

	printVerbose(cmd, "Parsing file: %s\n", filename)
	node, err := parser.ParseFile(filename)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	ctx := cmd.Context()
	switch doc := node.(type) {
	case *ast.Application:
		if fnName == "" {
			return fmt.Errorf("application documents need --fn to pick a function")
		}
		st, err := buildStack(ctx, cfg, doc, false)
		if err != nil {
			return err
		}
		defer st.Close()
		return callAndPrint(cmd, st, fnName, callArgs)

	case *ast.Component:
		app := &ast.Application{ID: doc.Name, Components: []*ast.Component{doc}}
		st, err := buildStack(ctx, cfg, app, false)
		if err != nil {
			return err
		}
		defer st.Close()
		return callAndPrint(cmd, st, doc.Name, callArgs)

	case *ast.Job:
		app := &ast.Application{ID: doc.Name, Jobs: []*ast.Job{doc}}
		st, err := buildStack(ctx, cfg, app, false)
		if err != nil {
			return err
		}
		defer st.Close()

		scope := st.base.Child()
		for k, v := range callArgs {
			scope.Set(k, v)
		}
		if _, err := st.in.ExecBody(ctx, doc.Body, scope); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s completed\n", doc.Name)
		return nil

	default:
		return fmt.Errorf("run: unsupported document root %s", node.Kind())
	}
}

func callAndPrint(cmd *cobra.Command, st *stack, name string, args map[string]any) error {
	var out strings.Builder
	ctx := interp.WithOutput(cmd.Context(), &out)

	result, err := st.runtime.Call(ctx, name, args)
	if err != nil {
		return err
	}

	if out.Len() > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), out.String())
	}
	if result == nil {
		return nil
	}
	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), binding.Stringify(result))
		return nil
	}
}
