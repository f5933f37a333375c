package observe

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)


// meterName is the instrumentation scope name for kgsearchd's metrics.
const meterName = "github.com/terraphim/kgsearchd"

// Metrics holds every OpenTelemetry instrument the search pipeline and HTTP
// layer record to. A single Metrics value is constructed once at startup
// (after [InitProvider]) and threaded through the components that need it.
type Metrics struct {
	// HTTPRequestDuration records the wall-clock duration of each HTTP
	// request, in seconds, labeled by method and path.
	HTTPRequestDuration metric.Float64Histogram

	// SearchDuration records the end-to-end duration of a search pipeline
	// run (thesaurus + role graph + middleware fan-out + scoring), in
	// seconds. It carries no attributes.
	SearchDuration metric.Float64Histogram

	// StageDuration records the duration of a single pipeline stage, in
	// seconds. The search pipeline times only the middleware fan-out stage,
	// and records it without stage or role attributes.
	StageDuration metric.Float64Histogram

	// HaystackRequests counts indexing attempts, one per haystack per
	// search. It carries no attributes (no location, service or outcome).
	HaystackRequests metric.Int64Counter

	// HaystackErrors counts failed indexing attempts. It carries no
	// attributes.
	HaystackErrors metric.Int64Counter

	// DocumentsIndexed counts documents inserted into a role's graph. It
	// carries no attributes.
	DocumentsIndexed metric.Int64Counter

	// ActiveSearches tracks the number of search requests currently being
	// processed, incremented on entry and decremented on completion.
	ActiveSearches metric.Int64UpDownCounter
}

// NewMetrics creates and registers every instrument against the globally
// configured OTel [metric.MeterProvider] (set up by [InitProvider]).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	httpDuration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create http.server.duration: %w", err)
	}

	searchDuration, err := meter.Float64Histogram("search.duration",
		metric.WithDescription("End-to-end search pipeline duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create search.duration: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("search.stage.duration",
		metric.WithDescription("Duration of a single search pipeline stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create search.stage.duration: %w", err)
	}

	haystackRequests, err := meter.Int64Counter("haystack.requests",
		metric.WithDescription("Haystack indexing attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create haystack.requests: %w", err)
	}

	haystackErrors, err := meter.Int64Counter("haystack.errors",
		metric.WithDescription("Haystack indexing failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create haystack.errors: %w", err)
	}

	documentsIndexed, err := meter.Int64Counter("documents.indexed",
		metric.WithDescription("Documents inserted into a role graph"),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create documents.indexed: %w", err)
	}

	activeSearches, err := meter.Int64UpDownCounter("search.active",
		metric.WithDescription("Search requests currently being processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create search.active: %w", err)
	}

	return &Metrics{
		HTTPRequestDuration: httpDuration,
		SearchDuration:      searchDuration,
		StageDuration:       stageDuration,
		HaystackRequests:    haystackRequests,
		HaystackErrors:      haystackErrors,
		DocumentsIndexed:    documentsIndexed,
		ActiveSearches:      activeSearches,
	}, nil
}
