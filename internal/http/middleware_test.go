package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	// Arrange
	var gotCtxID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtxID, _ = r.Context().Value("correlation_id").(string)
		if _, ok := r.Context().Value("logger").(*zap.Logger); !ok {
			t.Error("expected logger in request context")
		}
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(next)

	// Act
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/weather/london", nil))

	// Assert
	if gotCtxID == "" {
		t.Error("expected a generated correlation ID in context")
	}
	if header := rec.Header().Get("X-Correlation-ID"); header != gotCtxID {
		t.Errorf("response header = %q, want %q", header, gotCtxID)
	}
}

func TestCorrelationIDMiddleware_PropagatesProvidedID(t *testing.T) {
	var gotCtxID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtxID, _ = r.Context().Value("correlation_id").(string)
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(next)

	req := httptest.NewRequest("GET", "/weather/london", nil)
	req.Header.Set("X-Correlation-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotCtxID != "client-supplied-id" {
		t.Errorf("context correlation ID = %q, want client-supplied-id", gotCtxID)
	}
}

func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/weather/london", "/weather/{location}"},
		{"/forecast/tokyo,jp", "/forecast/{location}"},
		{"/historical/paris", "/historical/{location}"},
		{"/alerts/miami", "/alerts/{location}"},
		{"/insights/london", "/insights/{location}"},
		{"/unknown", "/unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.path, nil)
			if got := getRoute(r); got != tt.want {
				t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{404, "4xx"},
		{429, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		if got := statusCodeString(tt.code); got != tt.want {
			t.Errorf("statusCodeString(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestStatusRecorder_CapturesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}

	recorder.WriteHeader(http.StatusBadGateway)

	if recorder.statusCode != http.StatusBadGateway {
		t.Errorf("statusCode = %d, want 502", recorder.statusCode)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("underlying recorder code = %d, want 502", rec.Code)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := RateLimitMiddleware(nil)(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/weather/london", nil))

	if !called {
		t.Error("expected next handler to be called with nil limiter")
	}
}

func TestRateLimitMiddleware_DeniesWhenExhausted(t *testing.T) {
	// Arrange: burst of 1, effectively zero refill within the test
	limiter := rate.NewLimiter(rate.Limit(0.001), 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := RateLimitMiddleware(limiter)(next)

	// Act: first request consumes the burst, second is denied
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/weather/london", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/weather/london", nil))

	// Assert
	if first.Code != http.StatusOK {
		t.Errorf("first request status = %d, want 200", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(second.Body).Decode(&body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body.Error.Code != "RATE_LIMITED" {
		t.Errorf("error code = %q, want RATE_LIMITED", body.Error.Code)
	}
}

// TestWriteRateLimitError_NonStringCorrelationID verifies that the 429
// writer tolerates an unexpected type under the correlation ID key instead
// of panicking.
func TestWriteRateLimitError_NonStringCorrelationID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/weather/london", nil)
	req = req.WithContext(context.WithValue(req.Context(), "correlation_id", struct{}{}))

	writeRateLimitError(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body struct {
		Error struct {
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body.Error.RequestID != "" {
		t.Errorf("requestId = %q, want empty for non-string context value", body.Error.RequestID)
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var hadDeadline bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadDeadline = r.Context().Deadline()
	})
	handler := TimeoutMiddleware(50 * time.Millisecond)(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/weather/london", nil))

	if !hadDeadline {
		t.Error("expected request context to carry a deadline")
	}
}
