package search

import "fmt"

// Kind classifies a search [Error] so callers (notably the HTTP layer) can
// pick an appropriate status code and decide whether a retry makes sense.
type Kind string

const (
	// KindRoleNotFound means the requested role does not exist in the
	// current configuration.
	KindRoleNotFound Kind = "role_not_found"

	// KindThesaurusUnavailable means a role's thesaurus or role graph could
	// not be built (missing Logseq path, unreachable remote source, etc).
	KindThesaurusUnavailable Kind = "thesaurus_unavailable"

	// KindHaystackFailure means every configured haystack for a role failed
	// to respond; a partial failure is not an Error, it is surfaced via
	// per-haystack [middleware.Status] instead.
	KindHaystackFailure Kind = "haystack_failure"

	// KindInvalidQuery means the query itself is malformed (e.g. an
	// unsupported operator).
	KindInvalidQuery Kind = "invalid_query"
)

// Category groups related Kinds for metrics and logging.
type Category string

const (
	CategoryClient Category = "client"
	CategoryServer Category = "server"
)

// Error is the error type returned by [Pipeline.Search]. It carries enough
// structure for the HTTP layer to map it to a status code without string
// matching.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("search: %s: %v", e.Message, e.cause)
	}
	return fmt.Sprintf("search: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Category classifies e as a client-caused or server-caused failure.
func (e *Error) Category() Category {
	switch e.Kind {
	case KindRoleNotFound, KindInvalidQuery:
		return CategoryClient
	default:
		return CategoryServer
	}
}

// IsRecoverable reports whether retrying the same query might succeed
// without any configuration change, e.g. a transient haystack outage.
func (e *Error) IsRecoverable() bool {
	return e.Kind == KindHaystackFailure
}
