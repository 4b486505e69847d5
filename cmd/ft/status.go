package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync state and queued changes",
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		s.prober.ProbeOnce(ctx)
		st := s.engine.Status()

		user := st.User
		if user == "" {
			user = ui.RenderWarn("(not set)")
		}
		fmt.Printf("%s %s\n", ui.RenderAccent("User:"), user)
		fmt.Printf("%s %s\n", ui.RenderAccent("Server:"), cfg.Server.URL)
		fmt.Printf("%s %s (%s)\n", ui.RenderAccent("Cache:"), cfg.Cache.Path, cfg.Cache.Backend)
		fmt.Println(ui.SyncIndicator(st.Online, st.Syncing, st.Pending, st.LastSync))
		fmt.Printf("%d transactions cached\n", st.Transactions)
		if st.LastError != "" {
			fmt.Println(ui.RenderMuted("last error: " + st.LastError))
		}

		if !verbose {
			return
		}
		for _, op := range s.engine.Pending() {
			fmt.Printf("  #%d %-6s %s %s\n", op.Seq, op.Kind, op.Target, ui.RenderMuted(op.EnqueuedAt.Local().Format("02 Jan 15:04")))
		}
	},
}

func init() {
	statusCmd.Flags().BoolP("verbose", "v", false, "list queued changes")
	rootCmd.AddCommand(statusCmd)
}
