package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "ok", status: http.StatusOK, wantLevel: "INFO"},
		{name: "client error", status: http.StatusNotFound, wantLevel: "WARN"},
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			h := WithRequestLog("study", nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("hi"))
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/studies", nil)
			req.RemoteAddr = "198.51.100.4:5555"
			req = req.WithContext(ContextWithLogger(req.Context(), logger))
			h.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("decode log line %q: %v", buf.String(), err)
			}
			if entry["level"] != tc.wantLevel {
				t.Fatalf("level = %v, want %s", entry["level"], tc.wantLevel)
			}
			if entry["status"] != float64(tc.status) {
				t.Fatalf("status = %v, want %d", entry["status"], tc.status)
			}
			if entry["client_ip"] != "198.51.100.4" || entry["service"] != "study" || entry["bytes"] != float64(2) {
				t.Fatalf("unexpected entry: %v", entry)
			}
		})
	}
}
