package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/pushgp/experiments/regression"
	"github.com/chazu/pushgp/vm"
)

func newExecCmd() *cobra.Command {
	var (
		steps int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "exec PROGRAM...",
		Short: "Run one program and print the final stacks",
		Example: `  pushgp exec '( 2 3 INTEGER.PRODUCT )'
  pushgp exec --steps 50 '( 1 EXEC.Y ( INTEGER.DUP INTEGER.SUM ) )'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := regression.NewTable()
			if err != nil {
				return err
			}
			e := vm.NewEngine(table, vm.NewConfiguration(), vm.WithSeed(seed), vm.WithLogger(logger))
			if err := e.ParseAndSetCode(strings.Join(args, " ")); err != nil {
				return err
			}
			status := e.Run(steps)
			printState(cmd.OutOrStdout(), e, status)
			return status.Err()
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1000, "Maximum number of steps")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed for RAND instructions")
	return cmd
}

// printState writes the exit status followed by every stack, bottom first.
func printState(w io.Writer, e *vm.Engine, status vm.ExitStatus) {
	fmt.Fprintf(w, "exit: %s steps: %d illegal: %d insufficient: %d\n",
		status.Reason, status.Steps, status.IllegalOperations, status.InsufficientInputs)

	stacks := []struct {
		name  string
		items []vm.Code
	}{
		{"BOOL", literals(e.Bool().Items(), e.BoolLiteral)},
		{"CODE", e.Code().Items()},
		{"EXEC", e.Exec().Items()},
		{"FLOAT", literals(e.Float().Items(), e.FloatLiteral)},
		{"INTEGER", literals(e.Integer().Items(), e.IntegerLiteral)},
		{"NAME", literals(e.Name().Items(), e.NameLiteral)},
	}
	for _, s := range stacks {
		fmt.Fprintf(w, "%-8s %s\n", s.name+":", e.Format(vm.NewList(s.items...)))
	}
	for _, name := range e.DefinedNames() {
		def, _ := e.Definition(name)
		fmt.Fprintf(w, "%s = %s\n", name, e.Format(def))
	}
}

func literals[T any](items []T, literal func(T) vm.Code) []vm.Code {
	out := make([]vm.Code, len(items))
	for i, v := range items {
		out[i] = literal(v)
	}
	return out
}
