package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exthash/pkg/cli"
	"exthash/pkg/config"
	"exthash/pkg/database"
	"exthash/pkg/repl"
)

// shell runs the database REPL on stdin and stdout.
type shell struct {
	db     *database.Database
	repl   *repl.REPL
	prompt string
}

func (s *shell) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.repl.Run(uuid.New(), s.prompt, nil, nil)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
	return nil
}

func (s *shell) Close() error {
	return s.repl.Exclusive(s.db.Close)
}

func initRoot() {
	var noPrompt bool
	rootCmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Do not print the prompt")
	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		db, log, err := openDatabase()
		if err != nil {
			return err
		}
		defer log.Sync()
		return cli.Run(cmd.Context(), log, &shell{
			db:     db,
			repl:   database.DatabaseRepl(db),
			prompt: config.GetPrompt(!noPrompt),
		})
	}
}

// openDatabase loads the configuration and opens the data folder.
func openDatabase() (*database.Database, *zap.Logger, error) {
	cfg, err := rootCmd.Config()
	if err != nil {
		return nil, nil, err
	}
	log, err := cli.Logger(cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.DataDir, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return db, log, nil
}
