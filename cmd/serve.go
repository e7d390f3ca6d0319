package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/library"
	"github.com/KaramelBytes/dataloom/internal/server"
	"github.com/KaramelBytes/dataloom/internal/session"
)

var (
	serveAddr      string
	serveNoLibrary bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	Example: `  dataloom serve
  dataloom serve --addr :9090 --debug
  DATALOOM_SESSION_TTL_MIN=15 dataloom serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}
		if addr == "" {
			addr = ":8080"
		}
		var lib *library.Library
		if !serveNoLibrary {
			l, err := library.Open(cfg.LibraryDir)
			if err != nil {
				return fmt.Errorf("open library: %w", err)
			}
			lib = l
		}
		capacity := uint64(0)
		if cfg.MaxSessions > 0 {
			capacity = uint64(cfg.MaxSessions)
		}
		store := session.NewStore(cfg.SessionTTL(), capacity)
		defer store.OnEvict(func(sess *session.Session, expired bool) {
			log.WithField("session", sess.ID).WithField("expired", expired).Debug("session evicted")
		})()

		srv, err := server.New(server.Options{
			Config:  cfg,
			Store:   store,
			Library: lib,
			Logger:  log,
		})
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default config server_addr)")
	serveCmd.Flags().BoolVar(&serveNoLibrary, "no-library", false, "disable the saved-file library endpoints")
}
