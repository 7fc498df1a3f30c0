package credential

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

type fakeEnv struct {
	vars  map[string]string
	files map[string]string
	bins  map[string]string
	dirs  map[string]bool
	reads []string
}

func (f *fakeEnv) env() Environment {
	return Environment{
		Getenv: func(k string) string {
			f.reads = append(f.reads, k)
			return f.vars[k]
		},
		HomeDir: "/home/u",
		ReadFile: func(p string) ([]byte, error) {
			if s, ok := f.files[p]; ok {
				return []byte(s), nil
			}
			return nil, fs.ErrNotExist
		},
		Stat: func(p string) (fs.FileInfo, error) {
			if f.dirs[p] {
				return dirInfo{}, nil
			}
			return nil, fs.ErrNotExist
		},
		LookPath: func(name string) (string, error) {
			if p, ok := f.bins[name]; ok {
				return p, nil
			}
			return "", errors.New("not found")
		},
	}
}

type dirInfo struct{ os.FileInfo }

func (dirInfo) IsDir() bool { return true }

func TestResolve_AutoPicksDeclaredDefault(t *testing.T) {
	fe := &fakeEnv{
		files: map[string]string{
			"/home/u/.codex/auth.json": `{"tokens":{"access_token":"tok-123"}}`,
		},
		bins: map[string]string{"codex": "/usr/bin/codex"},
	}
	r := NewResolver(fe.env(), Selection{})

	c, err := r.Resolve(provider.Codex, config.ProviderConfig{ID: provider.Codex})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Source != provider.SourceOAuth || c.Kind != OAuthToken {
		t.Fatalf("resolved %s/%s, want oauth/oauth_token", c.Source, c.Kind)
	}
	if c.Secret != "tok-123" || c.Path != "/home/u/.codex/auth.json" {
		t.Fatalf("credential = %+v", c)
	}
}

func TestResolve_AutoFallsThroughToNextCandidate(t *testing.T) {
	fe := &fakeEnv{bins: map[string]string{"codex": "/usr/bin/codex"}}
	r := NewResolver(fe.env(), Selection{})

	c, err := r.Resolve(provider.Codex, config.ProviderConfig{ID: provider.Codex})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Source != provider.SourceCLI || c.Binary != "/usr/bin/codex" {
		t.Fatalf("credential = %+v, want cli at /usr/bin/codex", c)
	}
}

func TestResolve_AutoStopsAtFirstValid(t *testing.T) {
	fe := &fakeEnv{vars: map[string]string{
		"MINIMAX_API_KEY": "mm-key",
		"MINIMAX_COOKIE":  "a=b",
	}}
	r := NewResolver(fe.env(), Selection{})

	c, err := r.Resolve(provider.Minimax, config.ProviderConfig{ID: provider.Minimax})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Source != provider.SourceAPI {
		t.Fatalf("source = %s, want api", c.Source)
	}
	for _, k := range fe.reads {
		if strings.Contains(k, "COOKIE") {
			t.Fatalf("web candidate evaluated after api succeeded (read %s)", k)
		}
	}
}

func TestResolve_UnsupportedSourceEvenWithMaterial(t *testing.T) {
	fe := &fakeEnv{vars: map[string]string{"Z_AI_API_KEY": "zk"}}
	r := NewResolver(fe.env(), Selection{})

	_, err := r.Resolve(provider.Zai, config.ProviderConfig{
		ID: provider.Zai, Source: provider.SourceWeb, CookieHeader: "a=b",
	})
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("err = %v, want ErrUnsupportedSource", err)
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Provider != provider.Zai {
		t.Fatalf("err not provider-scoped: %#v", err)
	}
}

func TestResolve_MissingCredential(t *testing.T) {
	r := NewResolver((&fakeEnv{}).env(), Selection{})
	_, err := r.Resolve(provider.Warp, config.ProviderConfig{ID: provider.Warp})
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func TestResolve_ConfigBeatsEnv(t *testing.T) {
	fe := &fakeEnv{vars: map[string]string{"WARP_API_KEY": "from-env"}}
	r := NewResolver(fe.env(), Selection{})

	c, err := r.Resolve(provider.Warp, config.ProviderConfig{ID: provider.Warp, APIKey: "from-config"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Secret != "from-config" || c.Origin != "config:api_key" {
		t.Fatalf("credential = %s, want config value", c)
	}
}

func TestResolve_FirstNonEmptyAliasWins(t *testing.T) {
	fe := &fakeEnv{vars: map[string]string{
		"KIMI_K2_API_KEY": "  ",
		"KIMI_API_KEY":    "second",
		"KIMI_KEY":        "third",
	}}
	r := NewResolver(fe.env(), Selection{})

	c, err := r.Resolve(provider.KimiK2, config.ProviderConfig{ID: provider.KimiK2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Secret != "second" || c.Origin != "env:KIMI_API_KEY" {
		t.Fatalf("credential = %s, want KIMI_API_KEY", c)
	}
}

func TestResolve_CookieNeedsPair(t *testing.T) {
	fe := &fakeEnv{vars: map[string]string{"AMP_COOKIE": "garbage"}}
	r := NewResolver(fe.env(), Selection{})

	_, err := r.Resolve(provider.Amp, config.ProviderConfig{ID: provider.Amp})
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func claudeAccounts(active int) config.ProviderConfig {
	return config.ProviderConfig{
		ID: provider.Claude,
		TokenAccounts: &config.TokenAccountSet{
			Version:     1,
			ActiveIndex: active,
			Accounts: []config.TokenAccount{
				{Label: "work", Token: "sessionKey=first"},
				{Label: "home", Token: "sessionKey=second"},
			},
		},
	}
}

func TestResolve_ActiveAccount(t *testing.T) {
	r := NewResolver((&fakeEnv{}).env(), Selection{})

	c, err := r.Resolve(provider.Claude, claudeAccounts(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Secret != "sessionKey=second" || c.Account != "home" || c.Kind != CookieHeader {
		t.Fatalf("credential = %s", c)
	}

	_, err = r.Resolve(provider.Claude, claudeAccounts(5))
	if !errors.Is(err, ErrInvalidAccountIndex) {
		t.Fatalf("err = %v, want ErrInvalidAccountIndex", err)
	}
}

func TestResolve_SelectionOverrides(t *testing.T) {
	idx := 0
	r := NewResolver((&fakeEnv{}).env(), Selection{Index: &idx})
	c, err := r.Resolve(provider.Claude, claudeAccounts(1))
	if err != nil || c.Account != "work" {
		t.Fatalf("index override: %v, %v", c, err)
	}

	r = NewResolver((&fakeEnv{}).env(), Selection{Account: "HOME"})
	c, err = r.Resolve(provider.Claude, claudeAccounts(0))
	if err != nil || c.Account != "home" {
		t.Fatalf("label override: %v, %v", c, err)
	}

	r = NewResolver((&fakeEnv{}).env(), Selection{Account: "nobody"})
	if _, err := r.Resolve(provider.Claude, claudeAccounts(0)); !errors.Is(err, ErrInvalidAccountIndex) {
		t.Fatalf("unknown label err = %v", err)
	}
}

func TestResolve_AccountsIgnoredWhenUnsupported(t *testing.T) {
	fe := &fakeEnv{vars: map[string]string{"Z_AI_API_KEY": "zk"}}
	r := NewResolver(fe.env(), Selection{})
	pc := config.ProviderConfig{
		ID:            provider.Zai,
		TokenAccounts: &config.TokenAccountSet{ActiveIndex: 9, Accounts: []config.TokenAccount{{Token: "x"}}},
	}
	c, err := r.Resolve(provider.Zai, pc)
	if err != nil || c.Secret != "zk" {
		t.Fatalf("got %v, %v", c, err)
	}
}

func TestResolveAll_OnePerAccount(t *testing.T) {
	r := NewResolver((&fakeEnv{}).env(), Selection{})
	creds, err := r.ResolveAll(provider.Claude, claudeAccounts(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creds) != 2 || creds[0].Account != "work" || creds[1].Account != "home" {
		t.Fatalf("creds = %v", creds)
	}
}

func TestResolve_LocalAndClaudeConfigDir(t *testing.T) {
	dir := filepath.Join("/home/u", ".config", "JetBrains")
	fe := &fakeEnv{
		dirs: map[string]bool{dir: true},
		vars: map[string]string{"CLAUDE_CONFIG_DIR": "/cfg/claude"},
		files: map[string]string{
			"/cfg/claude/.credentials.json": `{"claudeAiOauth":{"accessToken":"sk-ant-oat"}}`,
		},
	}
	r := NewResolver(fe.env(), Selection{})

	c, err := r.Resolve(provider.JetBrains, config.ProviderConfig{ID: provider.JetBrains})
	if err != nil || c.Kind != LocalFilePath || c.Path != dir {
		t.Fatalf("jetbrains: %v, %v", c, err)
	}

	c, err = r.Resolve(provider.Claude, config.ProviderConfig{ID: provider.Claude})
	if err != nil || c.Secret != "sk-ant-oat" {
		t.Fatalf("claude: %v, %v", c, err)
	}
}

func TestResolve_CLICarriesArgs(t *testing.T) {
	fe := &fakeEnv{bins: map[string]string{"kiro-cli": "/opt/bin/kiro-cli"}}
	r := NewResolver(fe.env(), Selection{})

	c, err := r.Resolve(provider.Kiro, config.ProviderConfig{ID: provider.Kiro})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind != CLIInvocation || c.Binary != "/opt/bin/kiro-cli" {
		t.Fatalf("credential = %v", c)
	}
	want := []string{"chat", "--no-interactive", "/usage"}
	if !slices.Equal(c.Args, want) {
		t.Fatalf("args = %v, want %v", c.Args, want)
	}

	c.Args[0] = "changed"
	again, _ := r.Resolve(provider.Kiro, config.ProviderConfig{ID: provider.Kiro})
	if again.Args[0] != "chat" {
		t.Fatal("credential args share the catalog slice")
	}
}

func TestResolve_WorkspaceFromConfigOrEnv(t *testing.T) {
	fe := &fakeEnv{
		vars: map[string]string{
			"OPENCODE_COOKIE":                "auth=abc",
			"CODEXBAR_OPENCODE_WORKSPACE_ID": "wrk_env",
			"GCLOUD_PROJECT":                 "proj-env",
		},
		files: map[string]string{
			"/home/u/.config/gcloud/application_default_credentials.json": `{"refresh_token":"rt"}`,
		},
	}
	r := NewResolver(fe.env(), Selection{})

	c, err := r.Resolve(provider.OpenCode, config.ProviderConfig{ID: provider.OpenCode})
	if err != nil || c.Workspace != "wrk_env" {
		t.Fatalf("opencode env: %v, %v", c, err)
	}
	c, err = r.Resolve(provider.OpenCode, config.ProviderConfig{ID: provider.OpenCode, WorkspaceID: "wrk_cfg"})
	if err != nil || c.Workspace != "wrk_cfg" {
		t.Fatalf("opencode config: %v, %v", c, err)
	}

	c, err = r.Resolve(provider.VertexAI, config.ProviderConfig{ID: provider.VertexAI})
	if err != nil || c.Workspace != "proj-env" || c.Secret != "rt" {
		t.Fatalf("vertexai: %v, %v", c, err)
	}
}

func TestResolve_LocalFindsAndroidStudio(t *testing.T) {
	dir := filepath.Join("/home/u", ".config", "Google")
	fe := &fakeEnv{dirs: map[string]bool{dir: true}}
	c, err := NewResolver(fe.env(), Selection{}).Resolve(provider.JetBrains, config.ProviderConfig{ID: provider.JetBrains})
	if err != nil || c.Path != dir {
		t.Fatalf("jetbrains: %v, %v", c, err)
	}
}

func TestCredentialStringMasksSecret(t *testing.T) {
	c := Credential{Provider: provider.Warp, Source: provider.SourceAPI, Kind: APIKey, Secret: "wk-super-secret-value-1234"}
	for _, s := range []string{c.String(), c.GoString(), c.LogValue().String()} {
		if strings.Contains(s, "super-secret") {
			t.Errorf("secret leaked: %s", s)
		}
	}
}
