package http

const JSONKeyError = "error"

// RetryAfterSeconds is sent with 409 answers to an operation that is still pending.
const RetryAfterSeconds = "1"

const (
	HTTPErrorForbiddenText       = "forbidden"
	HTTPErrorUnknownCategoryText = "unknown vendor category"
)

// DefaultAllowedOrigins is used when no UI origin is configured.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
