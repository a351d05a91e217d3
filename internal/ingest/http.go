package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/hyperengineering/healthsync/internal/validation"
)

// maxBodyBytes bounds a single observation response.
const maxBodyBytes = 4 << 20

// HTTPAdapter fetches observations from a health platform bridge that serves
// GET {baseURL}/v1/observations/{date} as a tagged JSON document.
type HTTPAdapter struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPAdapter creates an adapter. A zero timeout defaults to 30 seconds.
func NewHTTPAdapter(baseURL, token string, timeout time.Duration) *HTTPAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch implements Adapter.
func (a *HTTPAdapter) Fetch(ctx context.Context, date types.Date) (types.SourceObservation, error) {
	var obs types.SourceObservation

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/observations/"+string(date), nil)
	if err != nil {
		return obs, fmt.Errorf("build request: %w", err)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return obs, fmt.Errorf("fetch %s: %w", date, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return obs, ErrNoData
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return obs, fmt.Errorf("fetch %s: unexpected status %d: %s", date, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obs); err != nil {
		return types.SourceObservation{}, fmt.Errorf("decode observation %s: %w", date, err)
	}

	if errs := validation.ValidateObservation(obs); len(errs) > 0 {
		return types.SourceObservation{}, &InvalidObservationError{Date: date, Errors: errs}
	}
	if obs.IsEmpty() {
		return types.SourceObservation{}, ErrNoData
	}
	return obs, nil
}
