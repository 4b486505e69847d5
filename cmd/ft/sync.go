package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Send queued changes and refresh from the backend",
	Long: `Replay queued changes in order, then replace the cached list with the
backend's copy. Pending records and edits that could not be sent yet are
kept on top of the refreshed list.`,
	Run: func(cmd *cobra.Command, args []string) {
		noRefresh, _ := cmd.Flags().GetBool("no-refresh")

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		res := s.syncNow(ctx)
		reportFlush(res)
		if res.Attempted == 0 && !res.Skipped {
			fmt.Println(ui.RenderMuted("Nothing to send."))
		}
		if res.Skipped || noRefresh {
			return
		}

		if err := s.engine.Refresh(ctx); err != nil {
			exitOnErr(err)
		}
		st := s.engine.Status()
		fmt.Printf("%s %d transactions cached\n", ui.RenderPass("✓ Refreshed:"), st.Transactions)
	},
}

func init() {
	syncCmd.Flags().Bool("no-refresh", false, "only send queued changes")
	rootCmd.AddCommand(syncCmd)
}
