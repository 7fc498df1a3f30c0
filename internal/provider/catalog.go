// Package provider is the static catalog of supported usage providers and the
// credential sources each one accepts.
package provider

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknown is returned for a provider or source name not in the catalog.
var ErrUnknown = errors.New("unknown")

// ID identifies a provider. The set is closed and defined at build time.
type ID string

// Known providers.
const (
	Codex     ID = "codex"
	Claude    ID = "claude"
	Gemini    ID = "gemini"
	Cursor    ID = "cursor"
	Factory   ID = "factory"
	Zai       ID = "zai"
	Minimax   ID = "minimax"
	Kimi      ID = "kimi"
	KimiK2    ID = "kimi_k2"
	Copilot   ID = "copilot"
	Kiro      ID = "kiro"
	VertexAI  ID = "vertexai"
	JetBrains ID = "jetbrains"
	Amp       ID = "amp"
	Warp      ID = "warp"
	OpenCode  ID = "opencode"
)

// SourceKind is a credential/retrieval strategy.
type SourceKind string

// Source kinds. Auto is only ever a request; resolution always yields one of
// the concrete kinds.
const (
	SourceAuto  SourceKind = "auto"
	SourceOAuth SourceKind = "oauth"
	SourceWeb   SourceKind = "web"
	SourceAPI   SourceKind = "api"
	SourceCLI   SourceKind = "cli"
	SourceLocal SourceKind = "local"
)

// ParseSource parses a source kind name. The empty string means auto.
func ParseSource(s string) (SourceKind, error) {
	switch k := SourceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SourceAuto, nil
	case SourceAuto, SourceOAuth, SourceWeb, SourceAPI, SourceCLI, SourceLocal:
		return k, nil
	}
	return "", fmt.Errorf("%w source %q (want auto, oauth, web, api, cli or local)", ErrUnknown, s)
}

// Field names a piece of credential material a provider can read from config
// or the environment.
type Field string

// Material fields.
const (
	FieldCookie      Field = "cookie_header"
	FieldAPIKey      Field = "api_key"
	FieldWorkspaceID Field = "workspace_id"
)

// Spec describes one provider's credential contract.
type Spec struct {
	ID          ID
	DisplayName string

	// Allowed lists the source kinds a config may request, besides auto.
	Allowed []SourceKind

	// AutoOrder is the fixed candidate order tried for source=auto. The first
	// entry is the provider's declared default.
	AutoOrder []SourceKind

	// Env maps a material field to its ordered environment aliases.
	// First non-empty wins.
	Env map[Field][]string

	// FieldKinds maps a material field to the source kind it feeds.
	FieldKinds map[Field]SourceKind

	// TokenAccounts reports multi-account support. AccountKind is the
	// source kind an account token is used as.
	TokenAccounts bool
	AccountKind   SourceKind

	// Binary and Args are the CLI invocation for cli sources.
	Binary string
	Args   []string

	// StatusPage is the statuspage.io base URL, if the provider has one.
	StatusPage string

	// Reports marks providers with a local session-log cost report.
	Reports bool
}

// Default returns the declared default source kind.
func (s Spec) Default() SourceKind {
	if len(s.AutoOrder) == 0 {
		return SourceAuto
	}
	return s.AutoOrder[0]
}

// Allows reports whether kind may be requested for this provider.
func (s Spec) Allows(kind SourceKind) bool {
	return kind == SourceAuto || slices.Contains(s.Allowed, kind)
}

// FieldFor returns the material field feeding kind, if any.
func (s Spec) FieldFor(kind SourceKind) (Field, bool) {
	for f, k := range s.FieldKinds {
		if k == kind {
			return f, true
		}
	}
	return "", false
}

var catalog = []Spec{
	{
		ID: Codex, DisplayName: "Codex",
		Allowed:       []SourceKind{SourceOAuth, SourceCLI},
		AutoOrder:     []SourceKind{SourceOAuth, SourceCLI},
		TokenAccounts: true, AccountKind: SourceOAuth,
		Binary:     "codex",
		StatusPage: "https://status.openai.com",
		Reports:    true,
	},
	{
		ID: Claude, DisplayName: "Claude",
		Allowed:       []SourceKind{SourceOAuth, SourceWeb},
		AutoOrder:     []SourceKind{SourceOAuth, SourceWeb},
		Env:           map[Field][]string{FieldCookie: {"CLAUDE_COOKIE"}},
		FieldKinds:    map[Field]SourceKind{FieldCookie: SourceWeb},
		TokenAccounts: true, AccountKind: SourceWeb,
		StatusPage: "https://status.claude.com",
		Reports:    true,
	},
	{
		ID: Gemini, DisplayName: "Gemini",
		Allowed:   []SourceKind{SourceOAuth},
		AutoOrder: []SourceKind{SourceOAuth},
	},
	{
		ID: Cursor, DisplayName: "Cursor",
		Allowed:   []SourceKind{SourceWeb, SourceAPI},
		AutoOrder: []SourceKind{SourceWeb},
		Env: map[Field][]string{
			FieldCookie: {"CURSOR_COOKIE"},
			FieldAPIKey: {"CURSOR_API_KEY"},
		},
		FieldKinds:    map[Field]SourceKind{FieldCookie: SourceWeb, FieldAPIKey: SourceAPI},
		TokenAccounts: true, AccountKind: SourceWeb,
	},
	{
		ID: Factory, DisplayName: "Factory",
		Allowed:   []SourceKind{SourceWeb, SourceAPI},
		AutoOrder: []SourceKind{SourceWeb, SourceAPI},
		Env: map[Field][]string{
			FieldCookie: {"FACTORY_COOKIE", "DROID_COOKIE"},
			FieldAPIKey: {"FACTORY_BEARER_TOKEN"},
		},
		FieldKinds: map[Field]SourceKind{FieldCookie: SourceWeb, FieldAPIKey: SourceAPI},
		StatusPage: "https://status.factory.ai",
	},
	{
		ID: Zai, DisplayName: "z.ai",
		Allowed:    []SourceKind{SourceAPI},
		AutoOrder:  []SourceKind{SourceAPI},
		Env:        map[Field][]string{FieldAPIKey: {"Z_AI_API_KEY"}},
		FieldKinds: map[Field]SourceKind{FieldAPIKey: SourceAPI},
	},
	{
		ID: Minimax, DisplayName: "MiniMax",
		Allowed:   []SourceKind{SourceAPI, SourceWeb},
		AutoOrder: []SourceKind{SourceAPI, SourceWeb},
		Env: map[Field][]string{
			FieldAPIKey: {"MINIMAX_API_KEY"},
			FieldCookie: {"MINIMAX_COOKIE", "MINIMAX_COOKIE_HEADER"},
		},
		FieldKinds: map[Field]SourceKind{FieldAPIKey: SourceAPI, FieldCookie: SourceWeb},
	},
	{
		ID: Kimi, DisplayName: "Kimi",
		Allowed:    []SourceKind{SourceAPI},
		AutoOrder:  []SourceKind{SourceAPI},
		Env:        map[Field][]string{FieldAPIKey: {"KIMI_AUTH_TOKEN"}},
		FieldKinds: map[Field]SourceKind{FieldAPIKey: SourceAPI},
	},
	{
		ID: KimiK2, DisplayName: "Kimi K2",
		Allowed:    []SourceKind{SourceAPI},
		AutoOrder:  []SourceKind{SourceAPI},
		Env:        map[Field][]string{FieldAPIKey: {"KIMI_K2_API_KEY", "KIMI_API_KEY", "KIMI_KEY"}},
		FieldKinds: map[Field]SourceKind{FieldAPIKey: SourceAPI},
	},
	{
		ID: Copilot, DisplayName: "Copilot",
		Allowed:    []SourceKind{SourceAPI},
		AutoOrder:  []SourceKind{SourceAPI},
		Env:        map[Field][]string{FieldAPIKey: {"COPILOT_API_TOKEN", "GITHUB_TOKEN"}},
		FieldKinds: map[Field]SourceKind{FieldAPIKey: SourceAPI},
		StatusPage: "https://www.githubstatus.com",
	},
	{
		ID: Kiro, DisplayName: "Kiro",
		Allowed:   []SourceKind{SourceCLI},
		AutoOrder: []SourceKind{SourceCLI},
		Binary:    "kiro-cli",
		Args:      []string{"chat", "--no-interactive", "/usage"},
	},
	{
		ID: VertexAI, DisplayName: "Vertex AI",
		Allowed:   []SourceKind{SourceOAuth},
		AutoOrder: []SourceKind{SourceOAuth},
		Env: map[Field][]string{
			FieldWorkspaceID: {"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "CLOUDSDK_CORE_PROJECT"},
		},
	},
	{
		ID: JetBrains, DisplayName: "JetBrains AI",
		Allowed:   []SourceKind{SourceLocal},
		AutoOrder: []SourceKind{SourceLocal},
	},
	{
		ID: Amp, DisplayName: "Amp",
		Allowed:    []SourceKind{SourceWeb},
		AutoOrder:  []SourceKind{SourceWeb},
		Env:        map[Field][]string{FieldCookie: {"AMP_COOKIE", "AMP_COOKIE_HEADER"}},
		FieldKinds: map[Field]SourceKind{FieldCookie: SourceWeb},
	},
	{
		ID: Warp, DisplayName: "Warp",
		Allowed:    []SourceKind{SourceAPI},
		AutoOrder:  []SourceKind{SourceAPI},
		Env:        map[Field][]string{FieldAPIKey: {"WARP_API_KEY", "WARP_TOKEN"}},
		FieldKinds: map[Field]SourceKind{FieldAPIKey: SourceAPI},
	},
	{
		ID: OpenCode, DisplayName: "OpenCode",
		Allowed:   []SourceKind{SourceWeb},
		AutoOrder: []SourceKind{SourceWeb},
		Env: map[Field][]string{
			FieldCookie:      {"OPENCODE_COOKIE", "OPENCODE_COOKIE_HEADER"},
			FieldWorkspaceID: {"CODEXBAR_OPENCODE_WORKSPACE_ID"},
		},
		FieldKinds: map[Field]SourceKind{FieldCookie: SourceWeb},
	},
}

var byID = func() map[ID]Spec {
	m := make(map[ID]Spec, len(catalog))
	for _, s := range catalog {
		m[s.ID] = s
	}
	return m
}()

// Lookup returns the spec for id.
func Lookup(id ID) (Spec, bool) {
	s, ok := byID[id]
	return s, ok
}

// MustLookup is Lookup for ids already known to be valid.
func MustLookup(id ID) Spec {
	s, ok := byID[id]
	if !ok {
		panic("provider: unknown id " + string(id))
	}
	return s
}

// All returns every provider id in catalog order.
func All() []ID {
	ids := make([]ID, len(catalog))
	for i, s := range catalog {
		ids[i] = s.ID
	}
	return ids
}

// DefaultEnabled is used when a config enables no providers.
func DefaultEnabled() []ID {
	return []ID{Codex, Claude, Gemini, Cursor}
}

// Parse resolves a provider name, accepting the droid alias for factory.
func Parse(name string) (ID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "droid" {
		return Factory, nil
	}
	if _, ok := byID[ID(n)]; ok {
		return ID(n), nil
	}
	return "", fmt.Errorf("%w provider %q", ErrUnknown, name)
}

// ParseList parses provider names from repeated and comma-separated values,
// dropping duplicates while keeping first-seen order. "all" is returned as
// wantAll so the caller can expand it against the current config.
func ParseList(values []string) (ids []ID, wantAll bool, err error) {
	seen := make(map[ID]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.EqualFold(part, "all") {
				wantAll = true
				continue
			}
			id, err := Parse(part)
			if err != nil {
				return nil, false, err
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, wantAll, nil
}
