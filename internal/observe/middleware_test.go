package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareRecordsStatusAndCorrelationID(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatal(err)
	}

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("got status %d", rec.Code)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("want X-Correlation-ID header set")
	}
}
