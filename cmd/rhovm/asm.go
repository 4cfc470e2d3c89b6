package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/rhovm/pkg/bytecode"
)

// ModuleExt is the suffix of serialized modules written by asm.
const ModuleExt = ".rbc"

func newAsmCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "asm <source>",
		Short: "Assemble source into a serialized module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := bytecode.Assemble(string(src))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			data, err := m.Marshal()
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ModuleExt
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return err
			}
			log.Infof("wrote %s (%d processes, %d constants, %d bytes)",
				output, len(m.Processes), m.Pool.Len(), len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: source with "+ModuleExt+")")
	return cmd
}

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <module>",
		Short: "Print a module as assembly source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), m.Disassemble())
			return nil
		},
	}
}
