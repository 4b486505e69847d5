package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fintrack/fintrack/internal/schema"
)

var day = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func sample() []schema.Transaction {
	return []schema.Transaction{
		{ID: "srv-1", User: "alice", Description: "Coffee", Amount: decimal.RequireFromString("120.5"), Type: schema.TypeExpense, Category: "food", Date: day, CreatedAt: day},
		{ID: "temp-1-abcd", User: "alice", Description: "Salary", Amount: decimal.NewFromInt(5000), Type: schema.TypeIncome, Date: day},
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		out     string
		wantErr bool
		check   func(t *testing.T, s Sink)
	}{
		{out: "jsonfile:/tmp/x.json", check: func(t *testing.T, s Sink) {
			assert.Equal(t, FormatJSON, s.(*File).Format)
		}},
		{out: "yaml:-", check: func(t *testing.T, s Sink) {
			assert.Equal(t, FormatYAML, s.(*File).Format)
		}},
		{out: "toml:a.toml", check: func(t *testing.T, s Sink) {
			assert.Equal(t, FormatTOML, s.(*File).Format)
		}},
		{out: "es8:http://es:9200", check: func(t *testing.T, s Sink) {
			es := s.(*Elasticsearch)
			assert.Equal(t, []string{"http://es:9200"}, es.cfg.Addresses)
			assert.Equal(t, DefaultIndex, es.cfg.Index)
		}},
		{out: "out.json", wantErr: true},
		{out: "jsonfile:", wantErr: true},
		{out: "s3:bucket", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			s, err := Parse(tt.out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestNewRecord(t *testing.T) {
	recs := Records(sample())
	assert.Equal(t, "120.50", recs[0].Amount)
	assert.False(t, recs[0].Pending)
	require.NotNil(t, recs[0].CreatedAt)

	assert.Equal(t, schema.DefaultCategory, recs[1].Category)
	assert.True(t, recs[1].Pending)
	assert.Nil(t, recs[1].CreatedAt)
}

func TestFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, (&File{Path: path, Format: FormatJSON}).Write(context.Background(), sample()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, Records(sample()), got)
}

func TestFile_YAMLStdout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&File{Path: "-", Format: FormatYAML, Stdout: &buf}).Write(context.Background(), sample()))

	var got []Record
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Coffee", got[0].Description)
	assert.Equal(t, "120.50", got[0].Amount)
	assert.True(t, got[0].Date.Equal(day))
}

func TestFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, (&File{Path: path, Format: FormatTOML}).Write(context.Background(), sample()))

	var doc tomlDoc
	_, err := toml.DecodeFile(path, &doc)
	require.NoError(t, err)
	require.Len(t, doc.Transactions, 2)
	assert.Equal(t, "Salary", doc.Transactions[1].Description)
	assert.Equal(t, "income", doc.Transactions[1].Type)
}

// fakeES answers index creation and bulk requests, recording document ids.
type fakeES struct {
	mu      sync.Mutex
	ids     []string
	failIDs map[string]bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Elastic-Product", "Elasticsearch")

	if !strings.HasSuffix(r.URL.Path, "/_bulk") {
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
		return
	}

	var items []string
	sc := bufio.NewScanner(r.Body)
	for sc.Scan() {
		var meta map[string]struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(sc.Bytes(), &meta); err != nil {
			continue
		}
		action, ok := meta["index"]
		if !ok {
			continue
		}
		sc.Scan() // document line

		status := 201
		if f.failIDs[action.ID] {
			status = 400
		}
		f.mu.Lock()
		f.ids = append(f.ids, action.ID)
		f.mu.Unlock()

		item := fmt.Sprintf(`{"index":{"_id":%q,"status":%d}}`, action.ID, status)
		if status != 201 {
			item = fmt.Sprintf(`{"index":{"_id":%q,"status":%d,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}`, action.ID, status)
		}
		items = append(items, item)
	}

	hasErrors := len(f.failIDs) > 0
	fmt.Fprintf(w, `{"took":1,"errors":%t,"items":[%s]}`, hasErrors, strings.Join(items, ","))
}

func TestElasticsearch_Write(t *testing.T) {
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sink := NewElasticsearch(ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, sink.Write(context.Background(), sample()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.ElementsMatch(t, []string{"srv-1", "temp-1-abcd"}, fake.ids)
}

func TestElasticsearch_ItemFailure(t *testing.T) {
	fake := &fakeES{failIDs: map[string]bool{"srv-1": true}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sink := NewElasticsearch(ElasticsearchConfig{Addresses: []string{srv.URL}})
	err := sink.Write(context.Background(), sample())
	assert.ErrorContains(t, err, "failed indexing 1 of 2")
}
