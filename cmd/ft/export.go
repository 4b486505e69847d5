package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/export"
	"github.com/fintrack/fintrack/internal/logger"
	"github.com/fintrack/fintrack/internal/ui"
	"github.com/fintrack/fintrack/internal/view"
)

var exportCmd = &cobra.Command{
	Use:     "export <kind:target>",
	GroupID: "data",
	Short:   "Write cached transactions to a file or Elasticsearch",
	Long: `Write the cached transactions, most recent first, to a destination:

  jsonfile:/path/file.json   JSON array ("-" for stdout)
  yaml:/path/file.yaml       YAML list
  toml:/path/file.toml       TOML [[transactions]] tables
  es8:http://host:9200       Elasticsearch bulk index, one document per id`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		category, _ := cmd.Flags().GetString("category")
		index, _ := cmd.Flags().GetString("index")

		sink, err := export.Parse(args[0])
		exitOnErr(err)
		if es, ok := sink.(*export.Elasticsearch); ok {
			sink = export.NewElasticsearch(export.ElasticsearchConfig{
				Addresses: es.Addresses(),
				Index:     index,
				Logger:    logger.Component(log, "export"),
			})
		}

		ctx := cmd.Context()
		s, err := openSession(ctx)
		exitOnErr(err)
		defer s.Close()

		txns := view.Filter(s.engine.Snapshot(), view.Query{Category: category})
		exitOnErr(sink.Write(ctx, txns))

		fmt.Fprintf(os.Stderr, "%s %d transactions to %s\n", ui.RenderPass("Exported"), len(txns), args[0])
	},
}

func init() {
	exportCmd.Flags().StringP("category", "c", "", "only this category")
	exportCmd.Flags().String("index", export.DefaultIndex, "Elasticsearch index")
	rootCmd.AddCommand(exportCmd)
}
