// Package fetcher performs the network calls for each provider and returns
// decoded payloads for the normalize package.
package fetcher

import (
	"context"
	"fmt"
	"net/http"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// Fetcher retrieves one provider's usage with a resolved credential. It must
// not modify the credential.
type Fetcher interface {
	Fetch(ctx context.Context, cred credential.Credential, pc config.ProviderConfig) (normalize.Raw, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, cred credential.Credential, pc config.ProviderConfig) (normalize.Raw, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, cred credential.Credential, pc config.ProviderConfig) (normalize.Raw, error) {
	return f(ctx, cred, pc)
}

// Registry maps provider ids to fetchers.
type Registry map[provider.ID]Fetcher

// Endpoints holds the base URLs fetchers talk to.
type Endpoints struct {
	ClaudeAPI  string
	ClaudeWeb  string
	ChatGPT    string
	GitHubAPI  string
	Zai        string
	ZaiCN      string
	Warp       string
	KimiK2     string
	MinimaxAPI string
	MinimaxWeb string
	MinimaxCN  string
	Cursor     string
	Kimi       string
	Factory    string
	Amp        string
	OpenCode   string

	// Google APIs used by Gemini and Vertex AI.
	CodeAssist    string
	CloudProjects string
	GoogleOAuth   string
	Monitoring    string
}

// DefaultEndpoints returns the production base URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ClaudeAPI:  "https://api.anthropic.com",
		ClaudeWeb:  "https://claude.ai",
		ChatGPT:    "https://chatgpt.com",
		GitHubAPI:  "https://api.github.com",
		Zai:        "https://api.z.ai",
		ZaiCN:      "https://open.bigmodel.cn",
		Warp:       "https://app.warp.dev",
		KimiK2:     "https://kimi-k2.ai",
		MinimaxAPI: "https://api.minimax.io",
		MinimaxWeb: "https://platform.minimax.io",
		MinimaxCN:  "https://platform.minimaxi.com",
		Cursor:     "https://cursor.com",
		Kimi:       "https://www.kimi.com",
		Factory:    "https://app.factory.ai",
		Amp:        "https://ampcode.com",
		OpenCode:   "https://opencode.ai",

		CodeAssist:    "https://cloudcode-pa.googleapis.com",
		CloudProjects: "https://cloudresourcemanager.googleapis.com",
		GoogleOAuth:   "https://oauth2.googleapis.com",
		Monitoring:    "https://monitoring.googleapis.com",
	}
}

// NewRegistry returns fetchers for every provider.
func NewRegistry(hc *http.Client, ep Endpoints) Registry {
	c := newClient(hc)
	return Registry{
		provider.Gemini:    &geminiFetcher{c: c, codeAssist: ep.CodeAssist, projects: ep.CloudProjects},
		provider.VertexAI:  &vertexFetcher{c: c, oauth: ep.GoogleOAuth, monitoring: ep.Monitoring},
		provider.Factory:   &factoryFetcher{c: c, base: ep.Factory},
		provider.Kimi:      &kimiFetcher{c: c, base: ep.Kimi},
		provider.Kiro:      &kiroFetcher{run: runCommand},
		provider.JetBrains: jetbrainsFetcher{},
		provider.Amp:       &ampFetcher{c: c, base: ep.Amp},
		provider.OpenCode:  &opencodeFetcher{c: c, base: ep.OpenCode},
		provider.Claude:    &claudeFetcher{c: c, apiBase: ep.ClaudeAPI, webBase: ep.ClaudeWeb},
		provider.Codex:     &codexFetcher{c: c, base: ep.ChatGPT},
		provider.Copilot:   &copilotFetcher{c: c, base: ep.GitHubAPI},
		provider.Zai:       &zaiFetcher{c: c, base: ep.Zai, cnBase: ep.ZaiCN},
		provider.Warp:      &warpFetcher{c: c, base: ep.Warp},
		provider.KimiK2:    &kimiK2Fetcher{c: c, base: ep.KimiK2},
		provider.Minimax:   &minimaxFetcher{c: c, apiBase: ep.MinimaxAPI, webBase: ep.MinimaxWeb, cnBase: ep.MinimaxCN},
		provider.Cursor:    &cursorFetcher{c: c, base: ep.Cursor},
	}
}

func unsupportedSource(cred credential.Credential) error {
	return &model.FetchError{
		Kind:     model.KindUnsupportedOperation,
		Provider: string(cred.Provider),
		Message:  fmt.Sprintf("usage fetch via %s is not implemented", cred.Kind),
	}
}
