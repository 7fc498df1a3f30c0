package normalize

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

const maxErrorSnippet = 200

// StatusError maps a non-2xx HTTP status to a FetchError. It returns nil for
// 2xx.
func StatusError(id provider.ID, status int, body []byte) *model.FetchError {
	if status >= 200 && status < 300 {
		return nil
	}

	var kind model.FetchErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = model.KindAuthenticationRejected
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		kind = model.KindRemoteUnavailable
	default:
		kind = model.KindTransportFailure
	}

	msg := fmt.Sprintf("HTTP %d", status)
	if snippet := errorSnippet(body); snippet != "" {
		msg += ": " + snippet
	}
	return &model.FetchError{Kind: kind, Provider: string(id), Message: msg}
}

// RemoteError maps an error reported inside a 2xx body.
func RemoteError(id provider.ID, code int64, msg string) *model.FetchError {
	kind := model.KindRemoteUnavailable
	lower := strings.ToLower(msg)
	switch {
	case code == 401 || code == 403 || code == 1004:
		kind = model.KindAuthenticationRejected
	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid token"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "authentication"),
		strings.Contains(lower, "not logged in"):
		kind = model.KindAuthenticationRejected
	}
	if msg == "" {
		msg = fmt.Sprintf("remote error code %d", code)
	}
	return &model.FetchError{Kind: kind, Provider: string(id), Message: msg}
}

func errorSnippet(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) <= maxErrorSnippet {
		return s
	}
	cut := maxErrorSnippet
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
