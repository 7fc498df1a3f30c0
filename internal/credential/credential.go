// Package credential turns a provider's config and the local environment into
// one validated credential, without touching the network.
package credential

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// MaterialKind is the shape of the secret a credential carries.
type MaterialKind string

// Material kinds.
const (
	OAuthToken    MaterialKind = "oauth_token"
	CookieHeader  MaterialKind = "cookie_header"
	APIKey        MaterialKind = "api_key"
	CLIInvocation MaterialKind = "cli_invocation"
	LocalFilePath MaterialKind = "local_file_path"
)

// Credential is the resolved, locally validated material for one fetch.
// Exactly the fields for Kind are set.
type Credential struct {
	Provider provider.ID
	Source   provider.SourceKind
	Kind     MaterialKind

	// Secret holds the token, cookie header or API key.
	Secret string

	// Binary and Args describe a CLIInvocation.
	Binary string
	Args   []string

	// Path is the file or directory for OAuthToken and LocalFilePath.
	Path string

	// Workspace is the workspace or cloud project id for providers that
	// scope usage by one.
	Workspace string

	// Account is the token-account label when one was selected.
	Account string

	// Origin says where the material came from: "config:api_key",
	// "env:Z_AI_API_KEY", a file path, or "account:<label>".
	Origin string
}

func (c Credential) String() string {
	parts := []string{string(c.Provider), string(c.Source), string(c.Kind)}
	if c.Account != "" {
		parts = append(parts, "account="+c.Account)
	}
	if c.Secret != "" {
		parts = append(parts, "secret="+config.MaskSecret(c.Secret))
	}
	if c.Origin != "" {
		parts = append(parts, "origin="+c.Origin)
	}
	return strings.Join(parts, " ")
}

// LogValue implements slog.LogValuer. The secret is always masked.
func (c Credential) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("provider", string(c.Provider)),
		slog.String("source", string(c.Source)),
		slog.String("kind", string(c.Kind)),
		slog.String("origin", c.Origin),
	}
	if c.Account != "" {
		attrs = append(attrs, slog.String("account", c.Account))
	}
	if c.Secret != "" {
		attrs = append(attrs, slog.String("secret", config.MaskSecret(c.Secret)))
	}
	return slog.GroupValue(attrs...)
}

// GoString keeps %#v from printing the secret.
func (c Credential) GoString() string {
	return fmt.Sprintf("credential.Credential{%s}", c.String())
}

func materialFor(kind provider.SourceKind) MaterialKind {
	switch kind {
	case provider.SourceOAuth:
		return OAuthToken
	case provider.SourceWeb:
		return CookieHeader
	case provider.SourceAPI:
		return APIKey
	case provider.SourceCLI:
		return CLIInvocation
	default:
		return LocalFilePath
	}
}

// validCookieHeader reports whether h holds at least one name=value pair.
func validCookieHeader(h string) bool {
	for _, part := range strings.Split(h, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.TrimSpace(name) != "" && strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}
