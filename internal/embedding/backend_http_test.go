package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewHTTPRejectsNonHTTPScheme(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{Name: "remote", BaseURL: "ftp://example.com"})
	require.Error(t, err)
}

func TestNewHTTPAcceptsHTTPAndHTTPS(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{Name: "remote", BaseURL: "http://example.com"})
	require.NoError(t, err)
	_, err = NewHTTP(HTTPConfig{Name: "remote", BaseURL: "https://example.com"})
	require.NoError(t, err)
}

func TestEmbedBatchSendsAuthorizationHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		resp := embedResp{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{0.1}}}}
		b, _ := json.Marshal(resp)
		w.Write(b)
	}))
	defer ts.Close()

	b, err := NewHTTP(HTTPConfig{Name: "remote", BaseURL: ts.URL, Path: "/", APIKey: "secret"})
	require.NoError(t, err)
	embs, err := b.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	require.Len(t, embs, 1)
}

func TestEmbedBatchHonorsRetryAfterClampedToMinimum(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	b, err := NewHTTP(HTTPConfig{Name: "remote", BaseURL: ts.URL, Path: "/"})
	require.NoError(t, err)

	start := time.Now()
	_, err = b.EmbedBatch(context.Background(), []string{"x"})
	elapsed := time.Since(start)
	require.Error(t, err)
	require.GreaterOrEqual(t, elapsed, retryAfterMin)
	require.Less(t, elapsed, retryAfterMax)
}

func TestParseRetryAfterClampsToRange(t *testing.T) {
	require.Equal(t, retryAfterMin, parseRetryAfter("0"))
	require.Equal(t, retryAfterMin, parseRetryAfter(""))
	require.Equal(t, retryAfterMin, parseRetryAfter("not-a-number"))
	require.Equal(t, retryAfterMax, parseRetryAfter("99999"))
	require.Equal(t, 5*time.Second, parseRetryAfter("5"))
}
