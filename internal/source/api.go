package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/colegiosrd/internal/core"
)

// DefaultAPIURL is the datos.gob.do datastore search endpoint.
const DefaultAPIURL = "https://datos.gob.do/api/3/action/datastore_search"

// DefaultAPITimeout bounds the single API request.
const DefaultAPITimeout = 30 * time.Second

// maxResponseBytes caps how much of the response body is read.
const maxResponseBytes = 64 << 20

// API fetches records with one unauthenticated GET. No retry, no paging.
type API struct {
	URL        string
	httpClient *http.Client
}

// NewAPI creates an API source. A zero timeout uses DefaultAPITimeout.
func NewAPI(url string, timeout time.Duration) *API {
	if url == "" {
		url = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	return &API{
		URL:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// datastoreResponse is the CKAN datastore_search envelope.
type datastoreResponse struct {
	Success *bool `json:"success,omitempty"`
	Result  *struct {
		Records []map[string]any `json:"records"`
	} `json:"result"`
}

// FetchRecords performs the request and unwraps result.records.
func (a *API) FetchRecords(ctx context.Context) ([]core.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", a.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api responded with status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()

	var body datastoreResponse
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.Success != nil && !*body.Success {
		return nil, fmt.Errorf("api reported failure")
	}
	if body.Result == nil {
		return nil, fmt.Errorf("response has no result")
	}

	records := make([]core.RawRecord, 0, len(body.Result.Records))
	for _, r := range body.Result.Records {
		records = append(records, normalizeNumeric(core.RawRecord(r)))
	}
	return records, nil
}
