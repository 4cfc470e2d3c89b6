package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/rhovm/pkg/bytecode"
	"github.com/chazu/rhovm/vm"
)

func newRunCmd(opts *options) *cobra.Command {
	var process string
	cmd := &cobra.Command{
		Use:   "run <module>",
		Short: "Run one process of a module",
		Long: `Run a single process of a module on one VM and print its result.
The module may be a serialized file or assembly source (.rasm, .asm, .s).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModule(args[0])
			if err != nil {
				return err
			}
			pc, err := pickProcess(m, process)
			if err != nil {
				return err
			}

			space, closeSpace, err := opts.config.OpenRSpace()
			if err != nil {
				return err
			}
			defer closeSpace()

			machine := vm.NewVM(space, opts.config.VMOptions()...)
			p := vm.NewProcessFromCode(pc, m.Pool)
			result, err := p.Run(machine)
			if err != nil {
				return fmt.Errorf("process %s: %w", pc.Name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&process, "process", "p", "",
		"Process to run (default: \""+bytecode.DefaultProcessName+"\", else the first)")
	return cmd
}

// pickProcess returns the named body, or the default one when name is
// empty.
func pickProcess(m *bytecode.Module, name string) (bytecode.ProcessCode, error) {
	if len(m.Processes) == 0 {
		return bytecode.ProcessCode{}, fmt.Errorf("module has no processes")
	}
	if name == "" {
		if pc, ok := m.Process(bytecode.DefaultProcessName); ok {
			return pc, nil
		}
		return m.Processes[0], nil
	}
	pc, ok := m.Process(name)
	if !ok {
		return bytecode.ProcessCode{}, fmt.Errorf("module has no process %q", name)
	}
	return pc, nil
}
