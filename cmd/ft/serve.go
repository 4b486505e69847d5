package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/logger"
	"github.com/fintrack/fintrack/internal/server"
	"github.com/fintrack/fintrack/internal/store"
	"github.com/fintrack/fintrack/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Run the fintrack backend",
	Long: `Run the backend the clients sync with: the REST API, the line parser
endpoint and the websocket push channel. Transactions are stored in an
embedded SQLite database.

Example usage:
  ft serve                        # listen on :5000
  ft serve --addr :8080 --db ./server.db

Connect clients with:
  ft --server http://localhost:5000 watch`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		dbPath, _ := cmd.Flags().GetString("db")
		if addr == "" {
			addr = cfg.Serve.Addr
		}
		if dbPath == "" {
			dbPath = cfg.Serve.DB
		}

		db, err := store.Open(dbPath)
		exitOnErr(err)
		defer db.Close()
		closeOnExit(func() { _ = db.Close() })

		srvCfg := server.DefaultConfig()
		srvCfg.Addr = addr
		srvCfg.Logger = logger.Component(log, "server")
		srvCfg.IsNotFound = func(err error) bool { return errors.Is(err, store.ErrNotFound) }
		srv := server.New(srvCfg, db)

		ctx := cmd.Context()
		exitOnErr(srv.Start(ctx))

		fmt.Printf("%s http://%s\n", ui.RenderAccent("Backend listening on"), srv.Addr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", srv.Addr())
		fmt.Printf("Database: %s\n", db.Path())
		fmt.Println(ui.RenderMuted("\nPress Ctrl+C to stop..."))

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		exitOnErr(srv.Stop())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from serve.addr)")
	serveCmd.Flags().String("db", "", "database path (default from serve.db)")
	rootCmd.AddCommand(serveCmd)
}
