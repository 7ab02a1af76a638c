// Command contractprove is a thin demo harness around pkg/verify: it
// registers one example contract, "abs", programmatically (contract-text
// parsing is out of scope, spec.md §1) and runs the engine's Call Driver
// against it on request.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitrdm/contractprove/pkg/verify"
)

func absExample(ss *verify.StateSpace, frame *verify.CallFrame) (verify.SymbolicValue, error) {
	x := frame.Args["x"]
	zero, err := ss.ConstInt(0)
	if err != nil {
		return verify.SymbolicValue{}, err
	}
	isNeg, err := verify.Dispatch(ss, verify.OpLt, x, zero)
	if err != nil {
		return verify.SymbolicValue{}, err
	}
	neg, err := isNeg.Branch(ss)
	if err != nil {
		return verify.SymbolicValue{}, err
	}
	if neg {
		return verify.Dispatch(ss, verify.OpSub, zero, x)
	}
	return x, nil
}

func registerExamples() *verify.MapContractProvider {
	provider := verify.NewMapContractProvider()

	absFn := func(x int) int {
		if x < 0 {
			return -x
		}
		return x
	}
	sig, _ := verify.ReflectSignature(absFn, []string{"x"})
	provider.Register("abs", &verify.Conditions{
		Sig: sig,
		Post: []verify.Condition{{
			ExprText: "abs(x) >= 0",
			Pos:      verify.Position{File: "examples.go", Line: 1},
			Eval: func(ss *verify.StateSpace, frame *verify.CallFrame) (verify.SymbolicValue, error) {
				zero, err := ss.ConstInt(0)
				if err != nil {
					return verify.SymbolicValue{}, err
				}
				return verify.Dispatch(ss, verify.OpGte, frame.Return, zero)
			},
		}},
		Impl: absExample,
	})

	return provider
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:   "contractprove",
		Short: "Run the contract-directed symbolic execution engine against a registered example",
	}

	root.AddCommand(&cobra.Command{
		Use:   "run [name]",
		Short: "Verify a registered example's contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := registerExamples()
			engine := verify.NewEngine(provider)
			result, err := engine.VerifyNamed(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("status: %v, confirmed paths: %d\n", result.Status, result.ConfirmedPaths)
			for _, m := range result.Messages {
				fmt.Printf("%s:%d:%d: %s\n", m.Pos.File, m.Pos.Line, m.Pos.Column, m.Text)
			}
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
