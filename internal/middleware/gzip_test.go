package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func gzipped(t *testing.T, s string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func TestGzipRequest(t *testing.T) {
	type want struct {
		statusCode   int
		bodyContains string
	}

	tests := []struct {
		name     string
		body     func(t *testing.T) io.Reader
		encoding string
		want     want
	}{
		{
			name:     "gzip body is inflated",
			body:     func(t *testing.T) io.Reader { return gzipped(t, `{"org_id":"00d1"}`) },
			encoding: "gzip",
			want:     want{statusCode: http.StatusOK, bodyContains: `received: {"org_id":"00d1"}`},
		},
		{
			name:     "plain body passes through",
			body:     func(t *testing.T) io.Reader { return strings.NewReader(`{"org_id":"00d1"}`) },
			encoding: "",
			want:     want{statusCode: http.StatusOK, bodyContains: `received: {"org_id":"00d1"}`},
		},
		{
			name:     "corrupt gzip body",
			body:     func(t *testing.T) io.Reader { return strings.NewReader("not gzip") },
			encoding: "gzip",
			want:     want{statusCode: http.StatusBadRequest, bodyContains: "Invalid gzip body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cancel", tt.body(t))
			if tt.encoding != "" {
				req.Header.Set("Content-Encoding", tt.encoding)
			}
			rec := httptest.NewRecorder()

			GzipRequest(zap.NewNop())(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

			assert.Equal(t, tt.want.statusCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want.bodyContains)
		})
	}
}
