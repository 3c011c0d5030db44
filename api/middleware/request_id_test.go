package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDEchoesValidHeader(t *testing.T) {
	h := RequestID(nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set(requestIDHeader, "edge-7f3a2c")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "edge-7f3a2c", rec.Header().Get(requestIDHeader))
}

func TestRequestIDReplacesUnusableHeader(t *testing.T) {
	for _, incoming := range []string{"", "has space", "line\nbreak", strings.Repeat("a", maxRequestIDLen+1)} {
		h := RequestID(nil)(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		if incoming != "" {
			req.Header[requestIDHeader] = []string{incoming}
		}
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		require.NotEqual(t, incoming, got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "expected a minted uuid for %q", incoming)
	}
}

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("stove exploded")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "stove exploded")
}

func TestRecovererReraisesAbortHandler(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
