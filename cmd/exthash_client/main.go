package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

// Connect to the database server and send messages to it.
func main() {
	var port int
	cmd := &cobra.Command{
		Use:          "exthash_client",
		Short:        "Connect to an exthash server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == 0 {
				return errors.New("usage: exthash_client -p <port>")
			}
			var d net.Dialer
			conn, err := d.DialContext(cmd.Context(), "tcp", fmt.Sprintf(":%d", port))
			if err != nil {
				return errors.Wrap(err, "dial")
			}
			defer conn.Close()
			go func() {
				_, _ = io.Copy(os.Stdout, conn)
			}()
			if _, err := io.Copy(conn, os.Stdin); err != nil {
				return errors.Wrap(err, "send")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port number")
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
