package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// GzipRequest transparently inflates request bodies sent with
// Content-Encoding: gzip. Response compression is left to chi.
func GzipRequest(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gzReader, err := gzip.NewReader(r.Body)
			if err != nil {
				logger.Warn("Invalid gzip request body", zap.String("path", r.URL.Path), zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"message":"Invalid gzip body"}`))
				return
			}
			defer gzReader.Close()

			r.Body = gzReader
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1

			next.ServeHTTP(w, r)
		})
	}
}
