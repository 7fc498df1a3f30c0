package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

const claudeOAuthBeta = "oauth-2025-04-20"

type claudeFetcher struct {
	c       *client
	apiBase string
	webBase string
}

type claudeOrganization struct {
	UUID         string   `json:"uuid"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

type claudeAccount struct {
	EmailAddress string `json:"email_address"`
}

func (f *claudeFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	switch cred.Kind {
	case credential.OAuthToken:
		return f.fetchOAuth(ctx, cred.Secret)
	case credential.CookieHeader:
		return f.fetchWeb(ctx, cookieHeader(cred.Secret))
	}
	return nil, unsupportedSource(cred)
}

func (f *claudeFetcher) fetchOAuth(ctx context.Context, token string) (normalize.Raw, error) {
	var usage normalize.ClaudeUsage
	_, err := f.c.getJSON(ctx, request{
		id:  provider.Claude,
		url: f.apiBase + "/api/oauth/usage",
		headers: map[string]string{
			"Authorization":  "Bearer " + token,
			"anthropic-beta": claudeOAuthBeta,
		},
	}, &usage)
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// fetchWeb reads the first organization's usage through the claude.ai web
// API. Overage and account lookups are best effort.
func (f *claudeFetcher) fetchWeb(ctx context.Context, cookie string) (normalize.Raw, error) {
	get := func(path string, out any) error {
		_, err := f.c.getJSON(ctx, request{
			id:      provider.Claude,
			url:     f.webBase + "/api" + path,
			headers: map[string]string{"Cookie": cookie},
		}, out)
		return err
	}

	var orgs []claudeOrganization
	if err := get("/organizations", &orgs); err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, &model.FetchError{
			Kind:     model.KindAuthenticationRejected,
			Provider: string(provider.Claude),
			Message:  "no organizations found for this session",
		}
	}
	org := orgs[0]

	var usage normalize.ClaudeUsage
	if err := get(fmt.Sprintf("/organizations/%s/usage", org.UUID), &usage); err != nil {
		return nil, err
	}
	usage.Organization = org.Name
	usage.Plan = planFromCapabilities(org.Capabilities)

	var overage normalize.ClaudeOverage
	if err := get(fmt.Sprintf("/organizations/%s/overage_spend_limit", org.UUID), &overage); err == nil {
		usage.Overage = &overage
	}
	var account claudeAccount
	if err := get("/account", &account); err == nil {
		usage.Email = account.EmailAddress
	}
	return usage, nil
}

func planFromCapabilities(caps []string) string {
	for _, c := range caps {
		switch strings.ToLower(c) {
		case "claude_max":
			return "max"
		case "claude_pro":
			return "pro"
		case "raven":
			return "team"
		}
	}
	return ""
}

// cookieHeader accepts either a bare session key or a full cookie header.
func cookieHeader(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "=") {
		return s
	}
	return "sessionKey=" + s
}
