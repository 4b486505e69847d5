package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fintrack/fintrack/internal/daemon"
	"github.com/fintrack/fintrack/internal/inbox"
	"github.com/fintrack/fintrack/internal/logger"
	"github.com/fintrack/fintrack/internal/realtime"
	"github.com/fintrack/fintrack/internal/ui"
	"github.com/fintrack/fintrack/internal/view"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Stay connected: sync continuously and receive live changes",
	Long: `Run in the foreground until interrupted:

  - replay queued changes whenever the backend becomes reachable
  - receive changes made on other devices over the push channel
  - record transactions from text files dropped into the inbox folder
    (receipt OCR output, copied SMS), unless --no-inbox is given

When stdin is a terminal, type to search the cached transactions; results
refresh shortly after you stop typing.`,
	Run: func(cmd *cobra.Command, args []string) {
		noInbox, _ := cmd.Flags().GetBool("no-inbox")
		noRealtime, _ := cmd.Flags().GetBool("no-realtime")

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		if s.engine.User() == "" {
			fmt.Fprintln(os.Stderr, ui.RenderWarn("No user configured: changes stay local until --user is set."))
		}

		d, err := daemon.New(s.engine, &daemon.Config{
			RefreshInterval: 5 * cfg.Sync.FlushInterval,
			Logger:          logger.Component(log, "daemon"),
		})
		exitOnErr(err)
		d.WithProber(s.prober)

		if !noRealtime && cfg.Server.WSURL != "" {
			rtCfg := realtime.DefaultConfig(cfg.Server.WSURL)
			rtCfg.Session = cfg.Server.Session
			rtCfg.Logger = logger.Component(log, "realtime")
			d.WithRealtime(realtime.NewClient(rtCfg, s.engine))
		}

		if !noInbox {
			inCfg := inbox.DefaultConfig(cfg.Inbox.Dir)
			inCfg.Extractor = newExtractor(false)
			inCfg.Logger = logger.Component(log, "inbox")
			w, err := inbox.New(inCfg, s.engine)
			exitOnErr(err)
			d.WithInbox(w)
			go reportInbox(w)
			fmt.Printf("%s %s\n", ui.RenderAccent("Inbox:"), cfg.Inbox.Dir)
		}

		if term.IsTerminal(int(os.Stdin.Fd())) {
			go searchPrompt(s)
		}

		fmt.Println(ui.RenderMuted("Press Ctrl+C to stop..."))
		exitOnErr(d.Start(ctx))

		st := s.engine.Status()
		fmt.Println(ui.SyncIndicator(st.Online, false, st.Pending, st.LastSync))
	},
}

func reportInbox(w *inbox.Watcher) {
	for res := range w.Results() {
		for _, t := range res.Recorded {
			fmt.Printf("%s %s %s\n", ui.RenderPass("Inbox:"), t.Description, ui.SignedAmount(t, ""))
		}
		if res.Err != nil && len(res.Recorded) == 0 {
			fmt.Printf("%s %s: %v\n", ui.RenderWarn("Inbox:"), res.Path, res.Err)
		}
	}
}

// searchPrompt reads search text from stdin and prints matching records once
// input settles.
func searchPrompt(s *session) {
	deb := view.NewDebouncer(view.DefaultDebounce, func(q string) {
		txns := view.Filter(s.engine.Snapshot(), view.Query{Category: s.engine.Settings().Category, Search: q})
		fmt.Println(ui.TransactionTable(txns, s.engine.Settings().Currency))
		st := s.engine.Status()
		fmt.Println(ui.SyncIndicator(st.Online, st.Syncing, st.Pending, st.LastSync))
	})
	defer deb.Stop()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		deb.Set(sc.Text())
	}
}

func init() {
	watchCmd.Flags().Bool("no-inbox", false, "do not watch the inbox folder")
	watchCmd.Flags().Bool("no-realtime", false, "do not open the push channel")
	rootCmd.AddCommand(watchCmd)
}
