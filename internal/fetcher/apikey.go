package fetcher

import (
	"context"
	"net/http"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

type copilotFetcher struct {
	c    *client
	base string
}

func (f *copilotFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.APIKey {
		return nil, unsupportedSource(cred)
	}
	var usage normalize.CopilotUsage
	_, err := f.c.getJSON(ctx, request{
		id:  provider.Copilot,
		url: f.base + "/copilot_internal/user",
		headers: map[string]string{
			"Authorization":         "token " + cred.Secret,
			"Editor-Version":        "vscode/1.96.2",
			"Editor-Plugin-Version": "copilot-chat/0.26.7",
			"X-Github-Api-Version":  "2025-04-01",
		},
	}, &usage)
	if err != nil {
		return nil, err
	}
	return usage, nil
}

type zaiFetcher struct {
	c      *client
	base   string
	cnBase string
}

func (f *zaiFetcher) Fetch(ctx context.Context, cred credential.Credential, pc config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.APIKey {
		return nil, unsupportedSource(cred)
	}
	base := f.base
	if r := strings.ToLower(pc.Region); strings.Contains(r, "cn") || strings.Contains(r, "bigmodel") {
		base = f.cnBase
	}
	var body map[string]any
	_, err := f.c.getJSON(ctx, request{
		id:      provider.Zai,
		url:     base + "/api/monitor/usage/quota/limit",
		headers: map[string]string{"Authorization": "Bearer " + cred.Secret},
	}, &body)
	if err != nil {
		return nil, err
	}
	return normalize.ZaiQuota{Body: body}, nil
}

const warpQuery = `query GetRequestLimitInfo($requestContext: RequestContext!) { user(requestContext: $requestContext) { __typename ... on UserOutput { user { requestLimitInfo { isUnlimited nextRefreshTime requestLimit requestsUsedSinceLastRefresh } } } } }`

type warpFetcher struct {
	c    *client
	base string
}

func (f *warpFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.APIKey {
		return nil, unsupportedSource(cred)
	}
	payload := map[string]any{
		"query":         warpQuery,
		"operationName": "GetRequestLimitInfo",
		"variables": map[string]any{
			"requestContext": map[string]any{
				"clientContext": map[string]any{},
				"osContext":     map[string]any{"category": "Linux", "name": "Linux", "version": "0.0.0"},
			},
		},
	}
	var limits normalize.WarpLimits
	_, err := f.c.getJSON(ctx, request{
		id:     provider.Warp,
		method: http.MethodPost,
		url:    f.base + "/graphql/v2?op=GetRequestLimitInfo",
		headers: map[string]string{
			"Authorization":      "Bearer " + cred.Secret,
			"X-Warp-Client-Id":   "warp-app",
			"X-Warp-Os-Category": "Linux",
		},
		body: payload,
	}, &limits)
	if err != nil {
		return nil, err
	}
	return limits, nil
}

type kimiK2Fetcher struct {
	c    *client
	base string
}

func (f *kimiK2Fetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.APIKey {
		return nil, unsupportedSource(cred)
	}
	var body map[string]any
	header, err := f.c.getJSON(ctx, request{
		id:      provider.KimiK2,
		url:     f.base + "/api/user/credits",
		headers: map[string]string{"Authorization": "Bearer " + cred.Secret},
	}, &body)
	if err != nil {
		return nil, err
	}
	return normalize.KimiK2Credits{Body: body, Header: header}, nil
}

type minimaxFetcher struct {
	c       *client
	apiBase string
	webBase string
	cnBase  string
}

func (f *minimaxFetcher) Fetch(ctx context.Context, cred credential.Credential, pc config.ProviderConfig) (normalize.Raw, error) {
	req := request{id: provider.Minimax, headers: map[string]string{}}
	switch cred.Kind {
	case credential.APIKey:
		req.url = f.apiBase + "/v1/coding_plan/remains"
		req.headers["Authorization"] = "Bearer " + cred.Secret
	case credential.CookieHeader:
		base := f.webBase
		if strings.Contains(strings.ToLower(pc.Region), "cn") {
			base = f.cnBase
		}
		req.url = base + "/v1/api/openplatform/coding_plan/remains"
		req.headers["Cookie"] = cred.Secret
		if tok := cookieValue(cred.Secret, "access_token", "accessToken"); tok != "" {
			req.headers["Authorization"] = "Bearer " + tok
		}
	default:
		return nil, unsupportedSource(cred)
	}

	var remains normalize.MinimaxRemains
	if _, err := f.c.getJSON(ctx, req, &remains); err != nil {
		return nil, err
	}
	return remains, nil
}

type cursorFetcher struct {
	c    *client
	base string
}

type cursorMe struct {
	Email string `json:"email"`
}

func (f *cursorFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	headers := map[string]string{}
	switch cred.Kind {
	case credential.CookieHeader:
		headers["Cookie"] = cred.Secret
	case credential.APIKey:
		headers["Authorization"] = "Bearer " + cred.Secret
	default:
		return nil, unsupportedSource(cred)
	}

	var summary normalize.CursorSummary
	_, err := f.c.getJSON(ctx, request{id: provider.Cursor, url: f.base + "/api/usage-summary", headers: headers}, &summary)
	if err != nil {
		return nil, err
	}
	var me cursorMe
	if _, err := f.c.getJSON(ctx, request{id: provider.Cursor, url: f.base + "/api/auth/me", headers: headers}, &me); err == nil {
		summary.Email = me.Email
	}
	return summary, nil
}

// cookieValue returns the first non-empty value among names in a cookie
// header, matching names case-insensitively.
func cookieValue(header string, names ...string) string {
	for _, part := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(k), n) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

type kimiFetcher struct {
	c    *client
	base string
}

func (f *kimiFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.APIKey {
		return nil, unsupportedSource(cred)
	}
	var usages normalize.KimiUsages
	_, err := f.c.getJSON(ctx, request{
		id:      provider.Kimi,
		method:  http.MethodPost,
		url:     f.base + "/apiv2/kimi.gateway.billing.v1.BillingService/GetUsages",
		headers: map[string]string{"Authorization": "Bearer " + cred.Secret},
	}, &usages)
	if err != nil {
		return nil, err
	}
	return usages, nil
}
