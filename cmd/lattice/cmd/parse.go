package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lattice-lang/lattice/internal/parser"
)

// newParseCmd creates the parse command.
func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a document and display its AST",
		Long: `Parse a Lattice document and display the resulting syntax tree.

Useful for debugging tag structure and attribute handling.`,
		Args: cobra.ExactArgs(1),
		Example: `  lattice parse shop.ltc
  lattice parse --output json shop.ltc`,
		RunE: runParse,
	}
}

func runParse(cmd *cobra.Command, args []string) error {
	filename := args[0]
	printVerbose(cmd, "Parsing file: %s\n", filename)

	node, err := parser.ParseFile(filename)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(node)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", node.String())
		return nil
	}
}
