package ticketing

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testCreds = Credentials{Email: "bot@example.com", Password: "secret"}

type recorded struct {
	method string
	path   string
	body   string
	user   string
	pass   string
}

// apiStub answers every request with the next status from statuses (the last
// one repeats) and records what it saw.
type apiStub struct {
	statuses []int
	response string
	hits     atomic.Int32
	requests []recorded
}

func (s *apiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(s.hits.Add(1)) - 1
	body, _ := io.ReadAll(r.Body)
	user, pass, _ := r.BasicAuth()
	s.requests = append(s.requests, recorded{method: r.Method, path: r.URL.Path, body: string(body), user: user, pass: pass})

	status := s.statuses[len(s.statuses)-1]
	if n < len(s.statuses) {
		status = s.statuses[n]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, s.response)
}

func newTestClient(t *testing.T, stub *apiStub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		BaseURL:   srv.URL + "/api/v1",
		ShimURL:   srv.URL + "/shim/",
		RetryWait: time.Millisecond,
	}, testCreds, zap.NewNop())
}

func TestClientStatusHandling(t *testing.T) {
	type want struct {
		ok   bool
		body string
		hits int32
	}

	tests := []struct {
		name     string
		statuses []int
		call     func(c *Client) ([]byte, bool)
		want     want
	}{
		{
			name:     "get ok",
			statuses: []int{http.StatusOK},
			call:     func(c *Client) ([]byte, bool) { return c.Get(context.Background(), "cases/1.json", false) },
			want:     want{ok: true, body: `{"ok":true}`, hits: 1},
		},
		{
			name:     "post created",
			statuses: []int{http.StatusCreated},
			call: func(c *Client) ([]byte, bool) {
				return c.Post(context.Background(), "cases/1/tags.json", false, map[string]string{"tags": "a"})
			},
			want: want{ok: true, body: `{"ok":true}`, hits: 1},
		},
		{
			name:     "post 200 is not success",
			statuses: []int{http.StatusOK},
			call: func(c *Client) ([]byte, bool) {
				return c.Post(context.Background(), "cases/1/tags.json", false, map[string]string{"tags": "a"})
			},
			want: want{ok: false, hits: 1},
		},
		{
			name:     "put accepted",
			statuses: []int{http.StatusAccepted},
			call: func(c *Client) ([]byte, bool) {
				return c.Put(context.Background(), "tickets/update_many", true, map[string]string{})
			},
			want: want{ok: true, body: `{"ok":true}`, hits: 1},
		},
		{
			name:     "unauthorized is not retried",
			statuses: []int{http.StatusUnauthorized},
			call:     func(c *Client) ([]byte, bool) { return c.Get(context.Background(), "cases/1.json", false) },
			want:     want{ok: false, hits: 1},
		},
		{
			name:     "not found is not retried",
			statuses: []int{http.StatusNotFound},
			call:     func(c *Client) ([]byte, bool) { return c.Get(context.Background(), "cases/1.json", false) },
			want:     want{ok: false, hits: 1},
		},
		{
			name:     "server error is not retried",
			statuses: []int{http.StatusInternalServerError},
			call:     func(c *Client) ([]byte, bool) { return c.Get(context.Background(), "cases/1.json", false) },
			want:     want{ok: false, hits: 1},
		},
		{
			name:     "rate limited then ok",
			statuses: []int{http.StatusTooManyRequests, http.StatusOK},
			call:     func(c *Client) ([]byte, bool) { return c.Get(context.Background(), "cases/1.json", false) },
			want:     want{ok: true, body: `{"ok":true}`, hits: 2},
		},
		{
			name:     "rate limited three times",
			statuses: []int{http.StatusTooManyRequests},
			call: func(c *Client) ([]byte, bool) {
				return c.Put(context.Background(), "tickets/update_many", true, map[string]string{})
			},
			want: want{ok: false, hits: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &apiStub{statuses: tt.statuses, response: `{"ok":true}`}
			client := newTestClient(t, stub)

			body, ok := tt.call(client)

			assert.Equal(t, tt.want.ok, ok)
			assert.Equal(t, tt.want.hits, stub.hits.Load())
			if tt.want.ok {
				assert.JSONEq(t, tt.want.body, string(body))
			} else {
				assert.Nil(t, body)
			}
		})
	}
}

func TestClientURLsAndAuth(t *testing.T) {
	stub := &apiStub{statuses: []int{http.StatusOK}, response: `{}`}
	client := newTestClient(t, stub)

	_, ok := client.Get(context.Background(), "departments.json", false)
	require.True(t, ok)
	_, ok = client.Put(context.Background(), "tickets/update_many", true, map[string]string{})
	require.True(t, ok)

	require.Len(t, stub.requests, 2)
	assert.Equal(t, "/api/v1/departments.json", stub.requests[0].path)
	assert.Equal(t, "/shim/tickets/update_many", stub.requests[1].path)
	assert.Equal(t, "bot@example.com", stub.requests[0].user)
	assert.Equal(t, "secret", stub.requests[0].pass)
}

func TestClientTransportErrorIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := NewClient(ClientConfig{BaseURL: addr, ShimURL: addr, RetryWait: time.Hour}, testCreds, zap.NewNop())

	start := time.Now()
	body, ok := client.Get(context.Background(), "departments.json", false)

	assert.False(t, ok)
	assert.Nil(t, body)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestPing(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		stub := &apiStub{statuses: []int{http.StatusOK}, response: `{}`}
		assert.True(t, newTestClient(t, stub).Ping(context.Background()))
		assert.Equal(t, "/api/v1/departments.json", stub.requests[0].path)
	})

	t.Run("unauthorized", func(t *testing.T) {
		stub := &apiStub{statuses: []int{http.StatusUnauthorized}, response: `{}`}
		assert.False(t, newTestClient(t, stub).Ping(context.Background()))
	})

	t.Run("missing credentials skip the request", func(t *testing.T) {
		stub := &apiStub{statuses: []int{http.StatusOK}, response: `{}`}
		srv := httptest.NewServer(stub)
		defer srv.Close()

		client := NewClient(ClientConfig{BaseURL: srv.URL}, Credentials{Email: "bot@example.com"}, zap.NewNop())
		assert.False(t, client.Ping(context.Background()))
		assert.Zero(t, stub.hits.Load())
	})
}

func TestWriteInternalNote(t *testing.T) {
	tests := []struct {
		name          string
		ticketID      string
		statuses      []int
		wantDelivered bool
		wantPayload   string
	}{
		{
			name:          "numeric ticket id",
			ticketID:      "12345",
			statuses:      []int{http.StatusOK, http.StatusOK},
			wantDelivered: true,
			wantPayload:   `{"tickets":[{"id":12345,"comment":{"body":"hello","public":false}}]}`,
		},
		{
			name:          "non numeric ticket id",
			ticketID:      "CASE-9",
			statuses:      []int{http.StatusOK, http.StatusAccepted},
			wantDelivered: true,
			wantPayload:   `{"tickets":[{"id":"CASE-9","comment":{"body":"hello","public":false}}]}`,
		},
		{
			name:          "rejected",
			ticketID:      "1",
			statuses:      []int{http.StatusOK, http.StatusBadRequest},
			wantDelivered: false,
			wantPayload:   `{"tickets":[{"id":1,"comment":{"body":"hello","public":false}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &apiStub{statuses: tt.statuses, response: `{}`}
			gw := NewGateway(context.Background(), newTestClient(t, stub), zap.NewNop())

			out := gw.WriteInternalNote(context.Background(), tt.ticketID, "hello")

			assert.Equal(t, tt.wantDelivered, out.Delivered)
			if !tt.wantDelivered {
				assert.NotEmpty(t, out.Reason)
			}
			require.Len(t, stub.requests, 2)
			note := stub.requests[1]
			assert.Equal(t, http.MethodPut, note.method)
			assert.Equal(t, "/shim/tickets/update_many", note.path)
			assert.JSONEq(t, tt.wantPayload, note.body)
		})
	}
}

func TestGatewaySurvivesFailedProbe(t *testing.T) {
	stub := &apiStub{statuses: []int{http.StatusUnauthorized, http.StatusOK}, response: `{}`}
	gw := NewGateway(context.Background(), newTestClient(t, stub), zap.NewNop())

	out := gw.WriteInternalNote(context.Background(), "7", "text")

	assert.True(t, out.Delivered)
	assert.Equal(t, int32(2), stub.hits.Load())
}

func TestAddTags(t *testing.T) {
	stub := &apiStub{statuses: []int{http.StatusCreated}, response: `{}`}
	gw := &Gateway{client: newTestClient(t, stub), logger: zap.NewNop()}

	out := gw.AddTags(context.Background(), "42", "macd", "cancelled")

	assert.True(t, out.Delivered)
	require.Len(t, stub.requests, 1)
	assert.Equal(t, http.MethodPost, stub.requests[0].method)
	assert.Equal(t, "/api/v1/cases/42/tags.json", stub.requests[0].path)
	assert.JSONEq(t, `{"tags":"macd, cancelled"}`, stub.requests[0].body)
}

func TestDeleteTags(t *testing.T) {
	stub := &apiStub{
		statuses: []int{http.StatusOK},
		response: `{"data":[{"name":"keep"},{"name":"drop"},{"name":"other"}]}`,
	}
	gw := &Gateway{client: newTestClient(t, stub), logger: zap.NewNop()}

	out := gw.DeleteTags(context.Background(), "42", "drop")

	assert.True(t, out.Delivered)
	require.Len(t, stub.requests, 2)
	assert.Equal(t, http.MethodGet, stub.requests[0].method)
	assert.Equal(t, http.MethodPut, stub.requests[1].method)
	assert.Equal(t, "/api/v1/cases/42/tags.json", stub.requests[1].path)
	assert.JSONEq(t, `{"tags":"keep,other"}`, stub.requests[1].body)
}

func TestDeleteTagsReadFailure(t *testing.T) {
	stub := &apiStub{statuses: []int{http.StatusNotFound}, response: `{}`}
	gw := &Gateway{client: newTestClient(t, stub), logger: zap.NewNop()}

	out := gw.DeleteTags(context.Background(), "42", "drop")

	assert.False(t, out.Delivered)
	assert.Equal(t, int32(1), stub.hits.Load())
}

func TestGatewayRecoversPanics(t *testing.T) {
	gw := &Gateway{logger: zap.NewNop()}

	var out Outcome
	assert.NotPanics(t, func() {
		out = gw.WriteInternalNote(context.Background(), "1", "text")
	})
	assert.False(t, out.Delivered)
	assert.Contains(t, out.Reason, "panicked")
}

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Credentials
	}{
		{
			name: "decoded password",
			env: map[string]string{
				"kayako_email":    "bot@example.com",
				"kayako_password": base64.StdEncoding.EncodeToString([]byte("s3cret")),
			},
			want: Credentials{Email: "bot@example.com", Password: "s3cret"},
		},
		{
			name: "undecodable password is dropped",
			env:  map[string]string{"kayako_email": "bot@example.com", "kayako_password": "%%%"},
			want: Credentials{Email: "bot@example.com"},
		},
		{
			name: "nothing configured",
			env:  map[string]string{},
			want: Credentials{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LoadCredentials(tt.env, zap.NewNop()))
		})
	}
}

func TestNotePayloadShape(t *testing.T) {
	raw, err := json.Marshal(notePayload{Tickets: []noteTicket{{ID: ticketRef("9"), Comment: noteComment{Body: "b"}}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tickets":[{"id":9,"comment":{"body":"b","public":false}}]}`, string(raw))
}
