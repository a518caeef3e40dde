package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exthash/pkg/config"
)

type Options struct {
	ConfigPath string
	DataDir    string
}

type RootCommand struct {
	*cobra.Command
	Options Options
}

func Init(name, short string) *RootCommand {
	cmd := &RootCommand{
		Command: &cobra.Command{
			Use:           name,
			Short:         short,
			SilenceUsage:  true,
			SilenceErrors: true,
		},
	}
	cmd.initFlags()

	return cmd
}

// Config loads the configuration, applying flag overrides.
func (c *RootCommand) Config() (config.Config, error) {
	cfg, err := config.Load(c.Options.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.Options.DataDir != "" {
		cfg.DataDir = c.Options.DataDir
	}
	return cfg, nil
}

// Logger builds the process logger for the configured environment.
func Logger(cfg config.Config) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if cfg.Environment == config.EnvProd {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return log, nil
}

func (c *RootCommand) Execute(ctx context.Context) error {
	return c.ExecuteContext(ctx)
}

func (c *RootCommand) MustExecute(ctx context.Context) {
	if err := c.Execute(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s failed: %v\n", c.Name(), err)
		os.Exit(1)
	}
}
