// Package cli implements the formident command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linkrx/formident/internal/config"
	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

type appContext struct {
	cfg *config.Config
	log logging.Logger
}

var (
	cfgFile  string
	logLevel string
)

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "formident",
		Short: "Pharmaceutical formulation identity resolution engine",
		Long: `formident clusters drug formulation records from the Orange Book corpus
into equivalence classes, snapshots the result, and links NDC product
records to classes through a cross-schema equivalence predicate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"path to config file (default: environment variables only)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override the configured log level")

	root.AddCommand(
		newBuildCommand(),
		newClassesCommand(),
		newConsumeCommand(),
		newResolveCommand(),
		newMatchCommand(),
		newServeCommand(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (*appContext, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(log)
	return &appContext{cfg: cfg, log: log}, nil
}

func loadRegistry(path string) (*equivalence.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNotFound, "failed to open snapshot file").
			WithDetail(path)
	}
	defer f.Close()
	return equivalence.ReadSnapshot(f)
}
