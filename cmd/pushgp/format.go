package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/pushgp/experiments/regression"
	"github.com/chazu/pushgp/vm"
)

// ---------------------------------------------------------------------------
// pushgp fmt: canonical program formatter
// ---------------------------------------------------------------------------

// Format parses a program and returns it in canonical form: single spaces,
// instruction names as registered, floats with a decimal point.
func Format(table *vm.InstructionTable, source string) (string, error) {
	code, err := table.Parse(source)
	if err != nil {
		return "", err
	}
	return table.Format(code), nil
}

func newFmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt [PROGRAM...]",
		Short: "Print a program in canonical form",
		Long:  "Print a program in canonical form. With no arguments the program is read from standard input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				source = string(data)
			}

			table, err := regression.NewTable()
			if err != nil {
				return err
			}
			out, err := Format(table, source)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
