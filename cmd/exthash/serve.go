package main

import (
	"context"
	"fmt"
	"net"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exthash/pkg/cli"
	"exthash/pkg/config"
	"exthash/pkg/database"
	"exthash/pkg/repl"
)

// Default port 8335 (BEES).
const DEFAULT_PORT int = 8335

// server runs one database REPL per TCP connection. Commands of all clients
// are serialized by the REPL.
type server struct {
	db       *database.Database
	repl     *repl.REPL
	log      *zap.Logger
	listener net.Listener
}

func (s *server) Run(ctx context.Context) error {
	s.log.Info(config.DBName+" server started listening", zap.Stringer("addr", s.listener.Addr()))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept", zap.Error(err))
			continue
		}
		go s.handleConn(conn)
	}
}

// Handle a connection by running the repl on it.
func (s *server) handleConn(c net.Conn) {
	defer c.Close()
	clientID := uuid.New()
	s.log.Debug("client connected", zap.Stringer("client", clientID), zap.Stringer("remote", c.RemoteAddr()))
	s.repl.Run(clientID, config.Prompt, c, c)
	s.log.Debug("client disconnected", zap.Stringer("client", clientID))
}

func (s *server) Close() error {
	err := s.listener.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("close listener", zap.Error(err))
	}
	return s.repl.Exclusive(s.db.Close)
}

func initServe() {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the database REPL over TCP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, log, err := openDatabase()
			if err != nil {
				return err
			}
			defer log.Sync()
			listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
			if err != nil {
				_ = db.Close()
				return errors.Wrap(err, "listen")
			}
			return cli.Run(cmd.Context(), log, &server{
				db:       db,
				repl:     database.DatabaseRepl(db),
				log:      log,
				listener: listener,
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", DEFAULT_PORT, "Port number")
	rootCmd.AddCommand(cmd)
}
