package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nephroseq/genevidence-cli/api/schemas"
	"github.com/nephroseq/genevidence-cli/internal/config"
	"github.com/nephroseq/genevidence-cli/internal/retry"
)

// EnrichrClient talks to an Enrichr compatible HTTP API. All instances in a
// process should share one client: requests pass through a single rate
// limiter and circuit breaker so parallel cluster analyses cannot hammer the
// upstream.
type EnrichrClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *zap.Logger
}

var _ schemas.EnrichmentAPI = (*EnrichrClient)(nil)

// NewEnrichrClient builds the client from configuration. An empty base URL
// produces a client whose calls fail fast with an upstream error; callers
// treat external enrichment as unavailable rather than broken.
func NewEnrichrClient(cfg config.EnrichmentConfig, logger *zap.Logger) *EnrichrClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.EnrichrInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.EnrichrInterval), 1)
	}
	return &EnrichrClient{
		baseURL: strings.TrimRight(cfg.EnrichrURL, "/"),
		http:    &http.Client{Timeout: cfg.EnrichrTimeout},
		limiter: limiter,
		policy: retry.Policy{
			MaxAttempts: cfg.RetryAttempts,
			Backoff:     retry.ExponentialBackoff(cfg.RetryBaseDelay),
			Breaker:     retry.NewBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
		},
		logger: logger.Named("enrichr"),
	}
}

// Configured reports whether an upstream endpoint is set.
func (c *EnrichrClient) Configured() bool {
	return c.baseURL != ""
}

type addListResponse struct {
	UserListID int64 `json:"userListId"`
}

// Enrich uploads the gene list and fetches enrichment rows for the given
// library. The two-step Enrichr protocol (addList, then enrich) runs inside
// one retry attempt so a stale list id is never reused across retries.
func (c *EnrichrClient) Enrich(ctx context.Context, geneSymbols []string, geneSetLibrary string) ([]schemas.EnrichrRow, error) {
	if !c.Configured() {
		return nil, &schemas.UpstreamError{
			Service: "enrichr",
			Err:     fmt.Errorf("no endpoint configured"),
		}
	}
	if len(geneSymbols) == 0 {
		return []schemas.EnrichrRow{}, nil
	}

	var rows []schemas.EnrichrRow
	err := c.policy.Do(ctx, c.logger, func(ctx context.Context) error {
		listID, err := c.addList(ctx, geneSymbols)
		if err != nil {
			return err
		}
		rows, err = c.fetchEnrichment(ctx, listID, geneSetLibrary)
		return err
	})
	if err != nil {
		return nil, &schemas.UpstreamError{Service: "enrichr", Err: err}
	}
	return rows, nil
}

func (c *EnrichrClient) addList(ctx context.Context, genes []string) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var body strings.Builder
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("list", strings.Join(genes, "\n")); err != nil {
		return 0, err
	}
	if err := mw.WriteField("description", "genevidence cluster"); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/addList", strings.NewReader(body.String()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("addList returned status %d", resp.StatusCode)
	}

	var parsed addListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decoding addList response: %w", err)
	}
	return parsed.UserListID, nil
}

func (c *EnrichrClient) fetchEnrichment(ctx context.Context, listID int64, library string) ([]schemas.EnrichrRow, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("userListId", fmt.Sprintf("%d", listID))
	q.Set("backgroundType", library)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/enrich?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrich returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseEnrichResponse(raw, library)
}

// parseEnrichResponse decodes the positional row arrays Enrichr returns:
// rank, term, p-value, z-score, combined score, genes, adjusted p-value.
func parseEnrichResponse(raw []byte, library string) ([]schemas.EnrichrRow, error) {
	var payload map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding enrich response: %w", err)
	}
	entries, ok := payload[library]
	if !ok {
		return []schemas.EnrichrRow{}, nil
	}

	rows := make([]schemas.EnrichrRow, 0, len(entries))
	for _, entry := range entries {
		var fields []json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil {
			return nil, fmt.Errorf("decoding enrich row: %w", err)
		}
		if len(fields) < 7 {
			return nil, fmt.Errorf("enrich row has %d fields, want at least 7", len(fields))
		}
		var row schemas.EnrichrRow
		var zscore float64
		if err := decodeFields(fields,
			nil, &row.Term, &row.PValue, &zscore, &row.CombinedScore, &row.Genes, &row.AdjustedP); err != nil {
			return nil, err
		}
		row.OddsRatio = zscore
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeFields unmarshals positional row fields into the given targets. A
// nil target skips its position.
func decodeFields(fields []json.RawMessage, targets ...any) error {
	for i, target := range targets {
		if target == nil {
			continue
		}
		if err := json.Unmarshal(fields[i], target); err != nil {
			return fmt.Errorf("decoding enrich row field %d: %w", i, err)
		}
	}
	return nil
}

// Results runs external enrichment and folds the rows into the shared result
// form. Upstream failures (timeouts, open breaker, bad responses) degrade to
// an empty result set with a warning; a missing endpoint is a configuration
// error and fails fast.
func (c *EnrichrClient) Results(ctx context.Context, geneSymbols []string, geneSetLibrary string, fdrThreshold float64) ([]schemas.EnrichmentResult, error) {
	if !c.Configured() {
		return nil, &schemas.ConfigurationError{
			Resource: "enrichment.enrichr_url",
			Err:      fmt.Errorf("no endpoint configured"),
		}
	}
	rows, err := c.Enrich(ctx, geneSymbols, geneSetLibrary)
	if err != nil {
		c.logger.Warn("External enrichment unavailable, returning empty result set",
			zap.String("library", geneSetLibrary),
			zap.Int("genes", len(geneSymbols)),
			zap.Error(err))
		return []schemas.EnrichmentResult{}, nil
	}
	return ResultsFromRows(rows, len(geneSymbols), fdrThreshold), nil
}

// ResultsFromRows converts external rows into the shared result form,
// keeping only rows under the FDR threshold, sorted ascending by FDR.
func ResultsFromRows(rows []schemas.EnrichrRow, clusterSize int, fdrThreshold float64) []schemas.EnrichmentResult {
	out := make([]schemas.EnrichmentResult, 0, len(rows))
	for _, row := range rows {
		if row.AdjustedP >= fdrThreshold {
			continue
		}
		out = append(out, schemas.EnrichmentResult{
			TermID:          row.Term,
			TermName:        row.Term,
			PValue:          row.PValue,
			FDR:             row.AdjustedP,
			OverlapCount:    len(row.Genes),
			ClusterSize:     clusterSize,
			Genes:           row.Genes,
			OddsRatio:       row.OddsRatio,
			EnrichmentScore: scoreFromFDR(row.AdjustedP),
			CombinedScore:   row.CombinedScore,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FDR != out[j].FDR {
			return out[i].FDR < out[j].FDR
		}
		if out[i].PValue != out[j].PValue {
			return out[i].PValue < out[j].PValue
		}
		return out[i].TermID < out[j].TermID
	})
	return out
}
