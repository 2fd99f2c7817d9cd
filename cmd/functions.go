// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

var functionsSavePath string

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "Read and write the unit's function codes (101-128)",
	Long: `Function codes are the installer settings of the indoor unit, such as
auto restart or the filter sign interval. Each code holds a value from 1 to 3.

Writing function codes changes how the unit behaves. Save a backup with
"functions get --save" before changing anything.`,
}

var functionsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the function-code table",
	Args:  cobra.NoArgs,
	RunE:  runFunctionsGet,
}

var functionsSetCmd = &cobra.Command{
	Use:   "set CODE=VALUE...",
	Short: "Change function codes",
	Long: `Read the table, change the given codes and write both halves back.

Example:
  cn105 --port /dev/ttyUSB0 functions set 101=2 108=1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFunctionsSet,
}

var functionsRestoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Write a table saved with functions get --save",
	Args:  cobra.ExactArgs(1),
	RunE:  runFunctionsRestore,
}

func init() {
	rootCmd.AddCommand(functionsCmd)
	functionsCmd.AddCommand(functionsGetCmd, functionsSetCmd, functionsRestoreCmd)
	functionsGetCmd.Flags().StringVar(&functionsSavePath, "save", "", "Write a CBOR backup of the table to this file")
}

func printFunctions(table *cn105.FunctionTable) {
	fmt.Printf("Code  Value\n")
	for _, c := range table.Codes() {
		if !c.Valid {
			continue
		}
		fmt.Printf("%4d  %5d\n", c.Code, c.Value)
	}
}

// parseAssignments parses CODE=VALUE arguments
func parseAssignments(args []string) (map[int]int, error) {
	out := make(map[int]int, len(args))
	for _, arg := range args {
		code, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q (want CODE=VALUE)", arg)
		}
		c, err := strconv.Atoi(code)
		if err != nil || c < cn105.MinFunctionCode || c > cn105.MaxFunctionCode {
			return nil, fmt.Errorf("invalid function code %q (valid: %d-%d)", code, cn105.MinFunctionCode, cn105.MaxFunctionCode)
		}
		v, err := strconv.Atoi(value)
		if err != nil || v < cn105.MinFunctionValue || v > cn105.MaxFunctionValue {
			return nil, fmt.Errorf("invalid value %q for code %d (valid: %d-%d)", value, c, cn105.MinFunctionValue, cn105.MaxFunctionValue)
		}
		out[c] = v
	}
	return out, nil
}

func runFunctionsGet(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, e *heatpump.Engine) error {
		table, err := e.GetFunctions(ctx)
		if err != nil {
			return err
		}
		printFunctions(&table)

		if functionsSavePath == "" {
			return nil
		}
		data, err := cn105.MarshalFunctions(&table)
		if err != nil {
			return err
		}
		if err := os.WriteFile(functionsSavePath, data, 0o644); err != nil {
			return fmt.Errorf("failed to save function table: %w", err)
		}
		fmt.Printf("\nSaved to %s\n", functionsSavePath)
		return nil
	})
}

func runFunctionsSet(cmd *cobra.Command, args []string) error {
	changes, err := parseAssignments(args)
	if err != nil {
		return err
	}

	return withEngine(func(ctx context.Context, e *heatpump.Engine) error {
		table, err := e.GetFunctions(ctx)
		if err != nil {
			return err
		}
		for code, value := range changes {
			if !table.SetValue(code, value) {
				return fmt.Errorf("code %d is not present on this unit", code)
			}
		}
		if err := e.SetFunctions(ctx, &table); err != nil {
			return err
		}
		fmt.Printf("Wrote %d function code(s)\n", len(changes))
		return nil
	})
}

func runFunctionsRestore(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	table, err := cn105.UnmarshalFunctions(data)
	if err != nil {
		return err
	}

	return withEngine(func(ctx context.Context, e *heatpump.Engine) error {
		if err := e.SetFunctions(ctx, table); err != nil {
			return err
		}
		fmt.Printf("Restored function table from %s\n", args[0])
		printFunctions(table)
		return nil
	})
}
