package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/logger"
	"github.com/fintrack/fintrack/internal/parser"
	"github.com/fintrack/fintrack/internal/ui"
)

var parseCmd = &cobra.Command{
	Use:     "parse [file]",
	GroupID: "data",
	Short:   "Extract transactions from SMS or receipt text",
	Long: `Extract transactions from free text, one per line by default:

  [income|expense] <description> <amount> [date] [#category]

With an Anthropic API key configured (parser.anthropic_key or
FT_PARSER_ANTHROPIC_KEY) the model reads arbitrary text such as bank SMS
messages, falling back to the line format when it finds nothing.

Text is read from the file argument or stdin. Without --add the drafts are
only printed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		add, _ := cmd.Flags().GetBool("add")
		heuristicOnly, _ := cmd.Flags().GetBool("heuristic")

		var r io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			exitOnErr(err)
			defer f.Close()
			r = f
		}
		data, err := io.ReadAll(r)
		exitOnErr(err)

		ctx := cmd.Context()
		cands, err := newExtractor(heuristicOnly).Extract(ctx, string(data))
		exitOnErr(err)
		drafts := parser.Normalize(cands, time.Now())

		if !add {
			fmt.Println(ui.TransactionTable(drafts, ""))
			fmt.Println(ui.RenderMuted(fmt.Sprintf("%d found; rerun with --add to record them", len(drafts))))
			return
		}

		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		var failed []string
		for _, d := range drafts {
			t, err := s.engine.Create(ctx, d)
			if err != nil {
				failed = append(failed, fmt.Sprintf("%s: %v", d.Description, err))
				continue
			}
			fmt.Printf("%s %s %s\n", ui.RenderPass("Added"), t.Description, ui.SignedAmount(t, ""))
		}
		if len(failed) > 0 {
			fmt.Println(ui.RenderWarn("Skipped:\n  " + strings.Join(failed, "\n  ")))
		}
		reportFlush(s.syncNow(ctx))
	},
}

// newExtractor returns the model-backed extractor with the line heuristic as
// fallback when a key is configured, otherwise the heuristic alone.
func newExtractor(heuristicOnly bool) parser.Extractor {
	if heuristicOnly || cfg.Parser.AnthropicKey == "" {
		return parser.Heuristic{}
	}
	llm, err := parser.NewLLM(parser.LLMConfig{
		APIKey: cfg.Parser.AnthropicKey,
		Model:  cfg.Parser.Model,
	})
	if err != nil {
		plog := logger.Component(log, "parser")
		plog.Warn().Err(err).Msg("model extractor unavailable")
		return parser.Heuristic{}
	}
	return parser.Fallback{llm, parser.Heuristic{}}
}

func init() {
	parseCmd.Flags().Bool("add", false, "record the extracted transactions")
	parseCmd.Flags().Bool("heuristic", false, "use the line parser even when a model is configured")
	rootCmd.AddCommand(parseCmd)
}
