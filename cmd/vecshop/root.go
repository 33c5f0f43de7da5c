package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecshop/internal/config"
	logpkg "github.com/kailas-cloud/vecshop/internal/logger"
)

// rootOptions are the persistent flags shared by all commands.
type rootOptions struct {
	env        string
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "vecshop",
		Short: "Multimodal product search",
		Long: `vecshop fuses image and text query vectors, retrieves an over-fetched
candidate set from a vector store and re-ranks it by attribute matches.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotEnv()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.env, "env", "", "config environment (default $ENV or local)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "explicit config file, overrides --env")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newServeCmd(opts), newSearchCmd(opts), newVersionCmd())
	return cmd
}

func (o *rootOptions) environment() string {
	if o.env != "" {
		return o.env
	}
	return config.GetEnv()
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath) //nolint:wrapcheck // already names the file
	}
	return config.Load(o.environment()) //nolint:wrapcheck // already names the file
}

func (o *rootOptions) newLogger(cfg config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	return logpkg.NewLogger(o.environment(), level) //nolint:wrapcheck // already descriptive
}
