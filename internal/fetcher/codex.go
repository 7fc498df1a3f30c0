package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

type codexFetcher struct {
	c    *client
	base string
}

func (f *codexFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.OAuthToken {
		return nil, unsupportedSource(cred)
	}

	var usage normalize.CodexUsage
	_, err := f.c.getJSON(ctx, request{
		id:      provider.Codex,
		url:     f.base + "/backend-api/wham/usage",
		headers: map[string]string{"Authorization": "Bearer " + cred.Secret},
	}, &usage)
	if err != nil {
		return nil, err
	}
	usage.Email = jwtEmail(cred.Secret)
	return usage, nil
}

// jwtEmail reads the email claim from an unverified JWT, if there is one.
func jwtEmail(token string) string {
	email, _ := jwtClaims(token)
	return email
}

// jwtClaims reads the email and Google hosted-domain claims from an
// unverified JWT.
func jwtClaims(token string) (email, hostedDomain string) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", ""
	}
	var claims struct {
		Email   string `json:"email"`
		HD      string `json:"hd"`
		Profile struct {
			Email string `json:"email"`
		} `json:"https://api.openai.com/profile"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", ""
	}
	if claims.Email == "" {
		claims.Email = claims.Profile.Email
	}
	return claims.Email, claims.HD
}
