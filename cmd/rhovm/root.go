package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/rhovm/manifest"
	"github.com/chazu/rhovm/pkg/bytecode"
)

var log = commonlog.GetLogger("rhovm")

// options holds the flags shared by every subcommand and the loaded
// configuration they resolve to.
type options struct {
	configDir string
	backend   string
	verbose   int
	trace     bool

	config *manifest.Manifest
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "rhovm",
		Short:        "Rholang bytecode virtual machine",
		Long:         `Run, assemble and disassemble Rholang bytecode modules against an RSpace store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configDir, "config", "C", "",
		"Directory to search upwards for "+manifest.FileName+" (default: working directory)")
	flags.StringVar(&opts.backend, "backend", "",
		"Override the rspace backend: memory, pathmap or sqlite")
	flags.CountVarP(&opts.verbose, "verbose", "v",
		"Increase log verbosity (repeatable)")
	flags.BoolVar(&opts.trace, "trace", false,
		"Log every executed instruction")

	root.AddCommand(
		newRunCmd(opts),
		newParCmd(opts),
		newAsmCmd(),
		newDisasmCmd(),
	)
	return root
}

// load reads the configuration, applies flag overrides and configures
// logging.
func (o *options) load() error {
	dir := o.configDir
	if dir == "" {
		dir = "."
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return err
	}
	if m == nil {
		m = manifest.Default()
	}
	if o.backend != "" {
		m.RSpace.Backend = o.backend
	}
	if o.trace {
		m.VM.Trace = true
	}
	m.Log.Verbosity += o.verbose
	if err := m.Validate(); err != nil {
		return err
	}

	var logPath *string
	if m.Log.File != "" {
		p := m.Log.File
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Dir, p)
		}
		logPath = &p
	}
	commonlog.Configure(m.Log.Verbosity, logPath)
	log.Debugf("config: backend=%s workers=%d trace=%t dir=%s",
		m.RSpace.Backend, m.Scheduler.Workers, m.VM.Trace, m.Dir)

	o.config = m
	return nil
}

// assemblySuffixes mark text sources; anything else is read as a
// serialized module.
var assemblySuffixes = []string{".rasm", ".asm", ".s"}

func isAssembly(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range assemblySuffixes {
		if ext == s {
			return true
		}
	}
	return false
}

// loadModule reads a module from a serialized file or assembly source.
func loadModule(path string) (*bytecode.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isAssembly(path) {
		m, err := bytecode.Assemble(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return m, nil
	}
	m, err := bytecode.UnmarshalModule(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
