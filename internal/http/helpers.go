package http

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/session"
	"github.com/relieftoken/drt-client/internal/txflow"
)

func isLoopbackRequest(r *http.Request) bool {
	ra := r.RemoteAddr

	h, _, err := net.SplitHostPort(ra)
	if err != nil {
		ip := net.ParseIP(ra)
		return ip != nil && ip.IsLoopback()
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func normalizeOrigin(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	u, err := url.Parse(in)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), strings.ToLower(u.Host))
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if o = normalizeOrigin(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNoWallet):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusPreconditionRequired
	case errors.Is(err, session.ErrConnectInProgress), errors.Is(err, txflow.ErrActionPending):
		return http.StatusConflict
	case errors.Is(err, txflow.ErrUnknownTicket):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrContractRevert):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusConflict {
		c.Header("Retry-After", RetryAfterSeconds)
	}
	c.JSON(status, gin.H{JSONKeyError: apperr.UserMessage(err)})
}
