package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"docmind/internal/apperr"
)

// retryAfterMin and retryAfterMax bound how long EmbedBatch will honor a
// 429 response's Retry-After header.
const (
	retryAfterMin = 1 * time.Second
	retryAfterMax = 120 * time.Second
)

// httpBackend calls an OpenAI-embeddings-compatible HTTP endpoint. It
// backs both the "local" and "remote" backend kinds: the only difference
// between them is which base URL the operator points at. Grounded on the
// teacher's internal/embedding/client.go EmbedText/CheckReachability.
type httpBackend struct {
	name      string
	client    *http.Client
	baseURL   string
	path      string
	model     string
	apiKey    string
	apiHeader string
	dim       int
}

// HTTPConfig configures an httpBackend.
type HTTPConfig struct {
	Name      string
	BaseURL   string
	Path      string
	Model     string
	APIKey    string
	APIHeader string
	Dimension int
	Client    *http.Client
}

// NewHTTP returns a Backend backed by an HTTP embeddings endpoint.
func NewHTTP(cfg HTTPConfig) (Backend, error) {
	if cfg.BaseURL == "" {
		return nil, apperr.New(apperr.Configuration, "embedding base URL is required", nil)
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, apperr.New(apperr.Configuration, "invalid embedding base URL", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, apperr.New(apperr.Configuration, "embedding base URL scheme must be http or https, got "+parsed.Scheme, nil)
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	path := cfg.Path
	if path == "" {
		path = "/v1/embeddings"
	}
	header := cfg.APIHeader
	if header == "" {
		header = "Authorization"
	}
	return &httpBackend{
		name:      cfg.Name,
		client:    client,
		baseURL:   cfg.BaseURL,
		path:      path,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		apiHeader: header,
		dim:       cfg.Dimension,
	}, nil
}

func (h *httpBackend) Name() string   { return h.name }
func (h *httpBackend) Dimension() int { return h.dim }

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (h *httpBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "no inputs", nil)
	}
	body, err := json.Marshal(embedReq{Model: h.model, Input: texts})
	if err != nil {
		return nil, apperr.New(apperr.InvalidInput, "marshal request", err)
	}
	reqURL := h.baseURL + h.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.New(apperr.InvalidInput, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		if h.apiHeader == "Authorization" {
			req.Header.Set("Authorization", "Bearer "+h.apiKey)
		} else {
			req.Header.Set(h.apiHeader, h.apiKey)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.Retriable, "embedding request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.New(apperr.Retriable, "read embedding response", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, apperr.New(apperr.Retriable, "embedding endpoint rate limited", ctx.Err())
		}
		return nil, apperr.New(apperr.Retriable, "embedding endpoint rate limited", fmt.Errorf("status %s", resp.Status))
	}
	if resp.StatusCode/100 != 2 {
		return nil, apperr.New(apperr.Retriable, "embedding endpoint error", fmt.Errorf("status %s: %s", resp.Status, string(bodyBytes)))
	}

	var er embedResp
	if err := json.Unmarshal(bodyBytes, &er); err != nil {
		return nil, apperr.New(apperr.Retriable, "parse embedding response", err)
	}
	if len(er.Data) != len(texts) {
		return nil, apperr.New(apperr.Retriable, "unexpected embedding count", fmt.Errorf("got %d, want %d", len(er.Data), len(texts)))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

// parseRetryAfter interprets an HTTP Retry-After header (seconds form only;
// vendor embedding endpoints don't send the HTTP-date form) and clamps it
// to [retryAfterMin, retryAfterMax]. A missing or unparsable header, or a
// value of "0", clamps to the minimum backoff rather than not waiting at
// all.
func parseRetryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return retryAfterMin
	}
	d := time.Duration(secs) * time.Second
	if d < retryAfterMin {
		return retryAfterMin
	}
	if d > retryAfterMax {
		return retryAfterMax
	}
	return d
}

func (h *httpBackend) Ping(ctx context.Context) error {
	_, err := h.EmbedBatch(ctx, []string{"ping"})
	if err != nil {
		return apperr.New(apperr.Configuration, "embedding endpoint unreachable", err)
	}
	return nil
}
