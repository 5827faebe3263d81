package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "propagates incoming header", incoming: "req-incoming-123", keep: true},
		{name: "generates when missing"},
		{name: "replaces oversized id", incoming: strings.Repeat("x", 200)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
				if LoggerFromContext(r.Context()) == nil {
					t.Fatal("expected logger in context")
				}
			}))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("header %q and context %q must match and be set", got, seen)
			}
			if tc.keep && got != tc.incoming {
				t.Fatalf("request id = %q, want %q", got, tc.incoming)
			}
			if !tc.keep && got == tc.incoming {
				t.Fatalf("expected generated id, got incoming %q", got)
			}
		})
	}
}
