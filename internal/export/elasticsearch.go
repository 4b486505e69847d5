package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog"

	"github.com/fintrack/fintrack/internal/schema"
)

// DefaultIndex is the Elasticsearch index transactions are written to.
const DefaultIndex = "fintrack"

// ElasticsearchConfig configures the es8 sink.
type ElasticsearchConfig struct {
	Addresses []string
	Index     string

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper

	Logger zerolog.Logger
}

// Elasticsearch bulk-indexes transactions, one document per id, so repeated
// exports overwrite rather than duplicate.
type Elasticsearch struct {
	cfg ElasticsearchConfig
}

// NewElasticsearch creates the sink.
func NewElasticsearch(cfg ElasticsearchConfig) *Elasticsearch {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	return &Elasticsearch{cfg: cfg}
}

// Addresses returns the configured node URLs.
func (e *Elasticsearch) Addresses() []string {
	return e.cfg.Addresses
}

// Write implements Sink.
func (e *Elasticsearch) Write(ctx context.Context, txns []schema.Transaction) error {
	retryBackoff := backoff.NewExponentialBackOff()

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: e.cfg.Addresses,
		Transport: e.cfg.Transport,

		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: 5,
	})
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         e.cfg.Index,
		Client:        es,
		NumWorkers:    2,
		FlushBytes:    1 << 20,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	if res, err := es.Indices.Create(e.cfg.Index, es.Indices.Create.WithContext(ctx)); err != nil {
		e.cfg.Logger.Debug().Err(err).Str("index", e.cfg.Index).Msg("create index failed")
	} else {
		res.Body.Close()
	}

	var failed atomic.Int64
	for _, r := range Records(txns) {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", r.ID, err)
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: r.ID,
			Body:       bytes.NewReader(data),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
				ev := e.cfg.Logger.Warn().Str("id", item.DocumentID)
				if err != nil {
					ev.Err(err).Msg("failed to index transaction")
				} else {
					ev.Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("failed to index transaction")
				}
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return fmt.Errorf("failed to queue %s: %w", r.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("failed to flush bulk indexer: %w", err)
	}

	stats := bi.Stats()
	if stats.NumFailed > 0 || failed.Load() > 0 {
		return fmt.Errorf("failed indexing %d of %d transactions", stats.NumFailed, len(txns))
	}
	e.cfg.Logger.Info().Uint64("indexed", stats.NumFlushed).Str("index", e.cfg.Index).Msg("export complete")
	return nil
}
