package fetcher

import (
	"cmp"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

type geminiFetcher struct {
	c          *client
	codeAssist string
	projects   string
}

type codeAssistResponse struct {
	CurrentTier *struct {
		ID string `json:"id"`
	} `json:"currentTier"`
	Project json.RawMessage `json:"cloudaicompanionProject"`
}

// project accepts the companion project as a bare id or an object.
func (r codeAssistResponse) project() string {
	var id string
	if json.Unmarshal(r.Project, &id) == nil {
		return id
	}
	var obj struct {
		ID        string `json:"id"`
		ProjectID string `json:"projectId"`
	}
	if json.Unmarshal(r.Project, &obj) == nil {
		return cmp.Or(obj.ID, obj.ProjectID)
	}
	return ""
}

func (f *geminiFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.OAuthToken {
		return nil, unsupportedSource(cred)
	}
	auth := map[string]string{"Authorization": "Bearer " + cred.Secret}

	var tier, project string
	var ca codeAssistResponse
	_, err := f.c.getJSON(ctx, request{
		id:      provider.Gemini,
		method:  http.MethodPost,
		url:     f.codeAssist + "/v1internal:loadCodeAssist",
		headers: auth,
		body:    map[string]any{"metadata": map[string]string{"ideType": "GEMINI_CLI", "pluginType": "GEMINI"}},
	}, &ca)
	if err == nil {
		project = ca.project()
		if ca.CurrentTier != nil {
			tier = ca.CurrentTier.ID
		}
	}
	if project == "" {
		project = f.discoverProject(ctx, auth)
	}

	body := map[string]any{}
	if project != "" {
		body["project"] = project
	}
	var quota normalize.GeminiQuota
	_, err = f.c.getJSON(ctx, request{
		id:      provider.Gemini,
		method:  http.MethodPost,
		url:     f.codeAssist + "/v1internal:retrieveUserQuota",
		headers: auth,
		body:    body,
	}, &quota)
	if err != nil {
		return nil, err
	}
	quota.Tier = tier
	quota.Email, quota.HostedDomain = idTokenClaims(cred.Path)
	return quota, nil
}

// discoverProject looks for the project the Gemini API console created.
// Failures leave the quota call unscoped.
func (f *geminiFetcher) discoverProject(ctx context.Context, auth map[string]string) string {
	var list struct {
		Projects []struct {
			ProjectID string            `json:"projectId"`
			Labels    map[string]string `json:"labels"`
		} `json:"projects"`
	}
	if _, err := f.c.getJSON(ctx, request{id: provider.Gemini, url: f.projects + "/v1/projects", headers: auth}, &list); err != nil {
		return ""
	}
	for _, p := range list.Projects {
		if strings.HasPrefix(p.ProjectID, "gen-lang-client") {
			return p.ProjectID
		}
		if _, ok := p.Labels["generative-language"]; ok {
			return p.ProjectID
		}
	}
	return ""
}

// idTokenClaims reads the id_token next to the access token in a Google
// credentials file.
func idTokenClaims(path string) (email, hostedDomain string) {
	if path == "" {
		return "", ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ""
	}
	var doc struct {
		IDToken string `json:"id_token"`
	}
	if json.Unmarshal(data, &doc) != nil {
		return "", ""
	}
	return jwtClaims(doc.IDToken)
}

const (
	vertexUsageFilter = `metric.type="serviceruntime.googleapis.com/quota/allocation/usage" AND resource.type="consumer_quota" AND resource.label.service="aiplatform.googleapis.com"`
	vertexLimitFilter = `metric.type="serviceruntime.googleapis.com/quota/limit" AND resource.type="consumer_quota" AND resource.label.service="aiplatform.googleapis.com"`
	maxSeriesPages    = 20
)

type vertexFetcher struct {
	c          *client
	oauth      string
	monitoring string
}

// adcFile is gcloud's application_default_credentials.json.
type adcFile struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	TokenExpiry  string `json:"token_expiry"`
	IDToken      string `json:"id_token"`
}

func (f *vertexFetcher) Fetch(ctx context.Context, cred credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
	if cred.Kind != credential.OAuthToken {
		return nil, unsupportedSource(cred)
	}
	if cred.Workspace == "" {
		return nil, &model.FetchError{
			Kind:     model.KindMissingCredential,
			Provider: string(provider.VertexAI),
			Message:  "no Google Cloud project; set workspace_id or GOOGLE_CLOUD_PROJECT",
		}
	}

	token, email, err := f.accessToken(ctx, cred)
	if err != nil {
		return nil, err
	}
	end := time.Now().UTC()
	usage, err := f.series(ctx, token, cred.Workspace, vertexUsageFilter, end)
	if err != nil {
		return nil, err
	}
	limits, err := f.series(ctx, token, cred.Workspace, vertexLimitFilter, end)
	if err != nil {
		return nil, err
	}
	return normalize.VertexQuota{Usage: usage, Limits: limits, Project: cred.Workspace, Email: email}, nil
}

// accessToken returns a live access token, exchanging the ADC refresh token
// when the stored one is missing or within five minutes of expiry.
func (f *vertexFetcher) accessToken(ctx context.Context, cred credential.Credential) (token, email string, err error) {
	var adc adcFile
	if data, err := os.ReadFile(cred.Path); err == nil {
		_ = json.Unmarshal(data, &adc)
	}
	email = jwtEmail(adc.IDToken)

	if adc.AccessToken != "" && !expiresWithin(adc.TokenExpiry, 5*time.Minute) {
		return adc.AccessToken, email, nil
	}
	if adc.RefreshToken == "" || adc.ClientID == "" || adc.ClientSecret == "" {
		return cred.Secret, email, nil
	}

	var refreshed struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	}
	_, err = f.c.getJSON(ctx, request{
		id:     provider.VertexAI,
		method: http.MethodPost,
		url:    f.oauth + "/token",
		form: url.Values{
			"client_id":     {adc.ClientID},
			"client_secret": {adc.ClientSecret},
			"refresh_token": {adc.RefreshToken},
			"grant_type":    {"refresh_token"},
		},
	}, &refreshed)
	if err != nil {
		return "", "", err
	}
	if refreshed.AccessToken == "" {
		return "", "", &model.NormalizationError{Kind: model.UnrecognizedResponseShape, Detail: "vertexai: token refresh returned no access_token"}
	}
	if e := jwtEmail(refreshed.IDToken); e != "" {
		email = e
	}
	return refreshed.AccessToken, email, nil
}

// expiresWithin reports whether an RFC 3339 expiry is unknown or closer
// than d.
func expiresWithin(expiry string, d time.Duration) bool {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(expiry))
	if err != nil {
		return true
	}
	return time.Until(t) <= d
}

// series pages through a day of Cloud Monitoring samples for filter.
func (f *vertexFetcher) series(ctx context.Context, token, project, filter string, end time.Time) ([]normalize.VertexSeries, error) {
	var all []normalize.VertexSeries
	pageToken := ""
	for range maxSeriesPages {
		q := url.Values{
			"filter":             {filter},
			"interval.startTime": {end.Add(-24 * time.Hour).Format(time.RFC3339)},
			"interval.endTime":   {end.Format(time.RFC3339)},
			"view":               {"FULL"},
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page struct {
			TimeSeries    []normalize.VertexSeries `json:"timeSeries"`
			NextPageToken string                   `json:"nextPageToken"`
		}
		_, err := f.c.getJSON(ctx, request{
			id:      provider.VertexAI,
			url:     f.monitoring + "/v3/projects/" + url.PathEscape(project) + "/timeSeries?" + q.Encode(),
			headers: map[string]string{"Authorization": "Bearer " + token},
		}, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page.TimeSeries...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return all, nil
}
