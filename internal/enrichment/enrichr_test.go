package enrichment

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/config"
)

const enrichBody = `{"KEGG_2021_Human":[
	[1,"Polycystic kidney disease pathway",0.0004,2.5,48.2,["PKD1","PKD2"],0.004,0,0],
	[2,"Ciliopathy signaling",0.03,1.2,5.0,["PKHD1"],0.21,0,0]
]}`

func newEnrichrServer(t *testing.T, failures *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures != nil && failures.Load() > 0 {
			failures.Add(-1)
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/addList":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.NotEmpty(t, r.MultipartForm.Value["list"])
			fmt.Fprint(w, `{"userListId": 42}`)
		case "/enrich":
			assert.Equal(t, "42", r.URL.Query().Get("userListId"))
			assert.Equal(t, "KEGG_2021_Human", r.URL.Query().Get("backgroundType"))
			fmt.Fprint(w, enrichBody)
		default:
			http.NotFound(w, r)
		}
	}))
}

func clientConfig(url string) config.EnrichmentConfig {
	return config.EnrichmentConfig{
		FDRThreshold:    0.05,
		EnrichrURL:      url,
		EnrichrTimeout:  5 * time.Second,
		RetryAttempts:   3,
		RetryBaseDelay:  time.Millisecond,
		BreakerFailures: 10,
		BreakerCooldown: time.Minute,
	}
}

func TestEnrichrClient(t *testing.T) {
	server := newEnrichrServer(t, nil)
	defer server.Close()

	client := NewEnrichrClient(clientConfig(server.URL), zap.NewNop())
	rows, err := client.Enrich(context.Background(), []string{"PKD1", "PKD2", "PKHD1"}, "KEGG_2021_Human")
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Polycystic kidney disease pathway", rows[0].Term)
	assert.InDelta(t, 0.0004, rows[0].PValue, 1e-12)
	assert.InDelta(t, 0.004, rows[0].AdjustedP, 1e-12)
	assert.InDelta(t, 48.2, rows[0].CombinedScore, 1e-12)
	assert.Equal(t, []string{"PKD1", "PKD2"}, rows[0].Genes)
}

func TestEnrichrClientRetries(t *testing.T) {
	var failures atomic.Int32
	failures.Store(2)
	server := newEnrichrServer(t, &failures)
	defer server.Close()

	client := NewEnrichrClient(clientConfig(server.URL), zap.NewNop())
	rows, err := client.Enrich(context.Background(), []string{"PKD1"}, "KEGG_2021_Human")
	require.NoError(t, err, "transient failures should recover within the retry attempts")
	assert.Len(t, rows, 2)
}

func TestEnrichrClientExhaustedRetries(t *testing.T) {
	var failures atomic.Int32
	failures.Store(100)
	server := newEnrichrServer(t, &failures)
	defer server.Close()

	client := NewEnrichrClient(clientConfig(server.URL), zap.NewNop())
	_, err := client.Enrich(context.Background(), []string{"PKD1"}, "KEGG_2021_Human")
	require.Error(t, err)
	assert.True(t, schemas.IsUpstream(err))
}

func TestEnrichrClientUnconfigured(t *testing.T) {
	client := NewEnrichrClient(clientConfig(""), zap.NewNop())
	assert.False(t, client.Configured())

	_, err := client.Enrich(context.Background(), []string{"PKD1"}, "KEGG_2021_Human")
	require.Error(t, err)
	assert.True(t, schemas.IsUpstream(err), "missing endpoint fails fast as an upstream outage")
}

func TestEnrichrClientEmptyGeneList(t *testing.T) {
	client := NewEnrichrClient(clientConfig("http://unused.invalid"), zap.NewNop())
	rows, err := client.Enrich(context.Background(), nil, "KEGG_2021_Human")
	require.NoError(t, err)
	assert.Empty(t, rows, "nothing to submit, no network call")
}

func TestParseEnrichResponse(t *testing.T) {
	t.Run("library missing from response", func(t *testing.T) {
		rows, err := parseEnrichResponse([]byte(`{}`), "KEGG_2021_Human")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("malformed row", func(t *testing.T) {
		_, err := parseEnrichResponse([]byte(`{"KEGG_2021_Human":[[1,"term"]]}`), "KEGG_2021_Human")
		assert.Error(t, err)
	})
}

func TestResultsFromRows(t *testing.T) {
	rows := []schemas.EnrichrRow{
		{Term: "weak", PValue: 0.03, AdjustedP: 0.21, Genes: []string{"PKHD1"}},
		{Term: "strong", PValue: 0.0004, AdjustedP: 0.004, Genes: []string{"PKD1", "PKD2"}, CombinedScore: 48.2},
	}

	results := ResultsFromRows(rows, 3, 0.05)
	require.Len(t, results, 1, "rows over the FDR threshold are dropped")

	r := results[0]
	assert.Equal(t, "strong", r.TermID)
	assert.Equal(t, 2, r.OverlapCount)
	assert.Equal(t, 3, r.ClusterSize)
	assert.InDelta(t, 48.2, r.CombinedScore, 1e-12)
	assert.InDelta(t, -math.Log10(0.004), r.EnrichmentScore, 1e-9)
}

func TestEnrichrClientResults(t *testing.T) {
	t.Run("filters and converts rows", func(t *testing.T) {
		server := newEnrichrServer(t, nil)
		defer server.Close()

		client := NewEnrichrClient(clientConfig(server.URL), zap.NewNop())
		results, err := client.Results(context.Background(), []string{"PKD1", "PKD2", "PKHD1"}, "KEGG_2021_Human", 0.05)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Polycystic kidney disease pathway", results[0].TermID)
		assert.Equal(t, 3, results[0].ClusterSize)
	})

	t.Run("upstream timeout degrades to an empty result set", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			fmt.Fprint(w, `{"userListId": 42}`)
		}))
		defer server.Close()

		cfg := clientConfig(server.URL)
		cfg.EnrichrTimeout = 50 * time.Millisecond
		cfg.RetryAttempts = 1

		client := NewEnrichrClient(cfg, zap.NewNop())
		results, err := client.Results(context.Background(), []string{"PKD1"}, "KEGG_2021_Human", 0.05)
		require.NoError(t, err, "a slow upstream must not fail the request")
		assert.Empty(t, results)
	})

	t.Run("server errors degrade to an empty result set", func(t *testing.T) {
		var failures atomic.Int32
		failures.Store(100)
		server := newEnrichrServer(t, &failures)
		defer server.Close()

		client := NewEnrichrClient(clientConfig(server.URL), zap.NewNop())
		results, err := client.Results(context.Background(), []string{"PKD1"}, "KEGG_2021_Human", 0.05)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("unconfigured endpoint fails fast", func(t *testing.T) {
		client := NewEnrichrClient(clientConfig(""), zap.NewNop())
		_, err := client.Results(context.Background(), []string{"PKD1"}, "KEGG_2021_Human", 0.05)
		require.Error(t, err)
		assert.True(t, schemas.IsConfiguration(err))
	})
}
