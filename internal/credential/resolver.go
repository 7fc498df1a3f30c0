package credential

import (
	"encoding/json"
	"io/fs"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// Environment is the resolver's view of the machine. Tests swap in fakes.
type Environment struct {
	Getenv   func(string) string
	HomeDir  string
	ReadFile func(string) ([]byte, error)
	Stat     func(string) (fs.FileInfo, error)
	LookPath func(string) (string, error)
}

// OSEnvironment returns the real process environment.
func OSEnvironment() Environment {
	home, _ := os.UserHomeDir()
	return Environment{
		Getenv:   os.Getenv,
		HomeDir:  home,
		ReadFile: os.ReadFile,
		Stat:     os.Stat,
		LookPath: exec.LookPath,
	}
}

// Selection overrides the active token account for one invocation.
type Selection struct {
	// Account picks an account by label or id.
	Account string
	// Index picks an account by position when non-nil.
	Index *int
}

// Resolver picks and validates a credential per provider.
type Resolver struct {
	env Environment
	sel Selection
}

// NewResolver returns a Resolver over env.
func NewResolver(env Environment, sel Selection) *Resolver {
	return &Resolver{env: env, sel: sel}
}

// Resolve returns the credential to use for id under pc.
func (r *Resolver) Resolve(id provider.ID, pc config.ProviderConfig) (Credential, error) {
	spec, requested, err := r.prepare(id, pc)
	if err != nil {
		return Credential{}, err
	}

	if usesAccounts(spec, pc, requested) {
		idx, err := r.activeIndex(spec.ID, pc.TokenAccounts)
		if err != nil {
			return Credential{}, err
		}
		return accountCredential(spec, pc.TokenAccounts, idx)
	}

	if requested != provider.SourceAuto {
		if c, ok := r.try(spec, pc, requested); ok {
			return c, nil
		}
		return Credential{}, newError(id, MissingCredential, "no usable %s material", requested)
	}

	for kind := range autoCandidates(spec) {
		if c, ok := r.try(spec, pc, kind); ok {
			return c, nil
		}
	}
	return Credential{}, newError(id, MissingCredential, "tried %s", joinKinds(spec.AutoOrder))
}

// ResolveAll returns one credential per token account when accounts apply,
// in account order. Otherwise it behaves like Resolve. Account selection
// flags are ignored.
func (r *Resolver) ResolveAll(id provider.ID, pc config.ProviderConfig) ([]Credential, error) {
	spec, requested, err := r.prepare(id, pc)
	if err != nil {
		return nil, err
	}
	if !usesAccounts(spec, pc, requested) {
		c, err := r.Resolve(id, pc)
		if err != nil {
			return nil, err
		}
		return []Credential{c}, nil
	}

	creds := make([]Credential, 0, pc.TokenAccounts.Len())
	for i := range pc.TokenAccounts.Accounts {
		c, err := accountCredential(spec, pc.TokenAccounts, i)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, nil
}

func (r *Resolver) prepare(id provider.ID, pc config.ProviderConfig) (provider.Spec, provider.SourceKind, error) {
	spec, ok := provider.Lookup(id)
	if !ok {
		return provider.Spec{}, "", newError(id, UnsupportedSource, "unknown provider")
	}
	requested, err := provider.ParseSource(string(pc.Source))
	if err != nil {
		return spec, "", newError(id, UnsupportedSource, "%v", err)
	}
	if !spec.Allows(requested) {
		return spec, "", newError(id, UnsupportedSource, "source %q not supported (allowed: %s)",
			requested, joinKinds(spec.Allowed))
	}
	return spec, requested, nil
}

func usesAccounts(spec provider.Spec, pc config.ProviderConfig, requested provider.SourceKind) bool {
	if !spec.TokenAccounts || pc.TokenAccounts.Len() == 0 {
		return false
	}
	return requested == provider.SourceAuto || requested == spec.AccountKind
}

func (r *Resolver) activeIndex(id provider.ID, set *config.TokenAccountSet) (int, error) {
	idx := set.ActiveIndex
	switch {
	case r.sel.Account != "":
		i, ok := set.FindAccount(r.sel.Account)
		if !ok {
			return 0, newError(id, InvalidAccountIndex, "no account named %q", r.sel.Account)
		}
		idx = i
	case r.sel.Index != nil:
		idx = *r.sel.Index
	}
	if idx < 0 || idx >= len(set.Accounts) {
		return 0, newError(id, InvalidAccountIndex, "index %d out of range (0-%d)", idx, len(set.Accounts)-1)
	}
	return idx, nil
}

func accountCredential(spec provider.Spec, set *config.TokenAccountSet, idx int) (Credential, error) {
	a := set.Accounts[idx]
	label := config.AccountLabel(a, idx)
	token := strings.TrimSpace(a.Token)
	if token == "" {
		return Credential{}, newError(spec.ID, MissingCredential, "account %q has an empty token", label)
	}
	kind := materialFor(spec.AccountKind)
	if kind == CookieHeader && !validCookieHeader(token) {
		return Credential{}, newError(spec.ID, MissingCredential, "account %q token is not a cookie header", label)
	}
	return Credential{
		Provider: spec.ID,
		Source:   spec.AccountKind,
		Kind:     kind,
		Secret:   token,
		Account:  label,
		Origin:   "account:" + label,
	}, nil
}

// autoCandidates yields the provider's declared auto order.
func autoCandidates(spec provider.Spec) iter.Seq[provider.SourceKind] {
	return func(yield func(provider.SourceKind) bool) {
		for _, k := range spec.AutoOrder {
			if !yield(k) {
				return
			}
		}
	}
}

// try validates the material for one concrete kind.
func (r *Resolver) try(spec provider.Spec, pc config.ProviderConfig, kind provider.SourceKind) (Credential, bool) {
	base := Credential{Provider: spec.ID, Source: kind, Kind: materialFor(kind)}
	base.Workspace, _ = r.lookupField(spec, pc, provider.FieldWorkspaceID)

	switch kind {
	case provider.SourceWeb, provider.SourceAPI:
		field, ok := spec.FieldFor(kind)
		if !ok {
			return Credential{}, false
		}
		value, origin := r.lookupField(spec, pc, field)
		if value == "" {
			return Credential{}, false
		}
		if kind == provider.SourceWeb && !validCookieHeader(value) {
			return Credential{}, false
		}
		base.Secret, base.Origin = value, origin
		return base, true

	case provider.SourceOAuth:
		for _, tf := range tokenFiles(spec.ID, r.env) {
			token, ok := r.readToken(tf)
			if ok {
				base.Secret, base.Path, base.Origin = token, tf.path, tf.path
				return base, true
			}
		}
		return Credential{}, false

	case provider.SourceCLI:
		if spec.Binary == "" {
			return Credential{}, false
		}
		path, err := r.env.LookPath(spec.Binary)
		if err != nil || path == "" {
			return Credential{}, false
		}
		base.Binary, base.Origin = path, "path:"+spec.Binary
		base.Args = slices.Clone(spec.Args)
		return base, true

	case provider.SourceLocal:
		for _, dir := range localDirs(spec.ID, r.env) {
			if info, err := r.env.Stat(dir); err == nil && info.IsDir() {
				base.Path, base.Origin = dir, dir
				return base, true
			}
		}
	}
	return Credential{}, false
}

// lookupField returns the config value for field, falling back to the first
// non-empty environment alias.
func (r *Resolver) lookupField(spec provider.Spec, pc config.ProviderConfig, field provider.Field) (value, origin string) {
	var configured string
	switch field {
	case provider.FieldCookie:
		configured = pc.CookieHeader
	case provider.FieldAPIKey:
		configured = pc.APIKey
	case provider.FieldWorkspaceID:
		configured = pc.WorkspaceID
	}
	if v := strings.TrimSpace(configured); v != "" {
		return v, "config:" + string(field)
	}
	for _, name := range spec.Env[field] {
		if v := strings.TrimSpace(r.env.Getenv(name)); v != "" {
			return v, "env:" + name
		}
	}
	return "", ""
}

type tokenFile struct {
	path string
	// keys are dotted JSON paths tried in order.
	keys []string
}

func tokenFiles(id provider.ID, env Environment) []tokenFile {
	home := env.HomeDir
	switch id {
	case provider.Codex:
		dir := env.Getenv("CODEX_HOME")
		if dir == "" {
			dir = filepath.Join(home, ".codex")
		}
		return []tokenFile{{path: filepath.Join(dir, "auth.json"), keys: []string{"tokens.access_token"}}}
	case provider.Claude:
		dir := env.Getenv("CLAUDE_CONFIG_DIR")
		if dir == "" {
			dir = filepath.Join(home, ".claude")
		}
		return []tokenFile{{path: filepath.Join(dir, ".credentials.json"), keys: []string{"claudeAiOauth.accessToken"}}}
	case provider.Gemini:
		return []tokenFile{{path: filepath.Join(home, ".gemini", "oauth_creds.json"), keys: []string{"access_token"}}}
	case provider.VertexAI:
		dir := env.Getenv("CLOUDSDK_CONFIG")
		if dir == "" {
			dir = filepath.Join(home, ".config", "gcloud")
		}
		return []tokenFile{{
			path: filepath.Join(dir, "application_default_credentials.json"),
			keys: []string{"access_token", "refresh_token"},
		}}
	}
	return nil
}

func (r *Resolver) readToken(tf tokenFile) (string, bool) {
	data, err := r.env.ReadFile(tf.path)
	if err != nil {
		return "", false
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", false
	}
	for _, key := range tf.keys {
		if s, ok := lookupPath(doc, key); ok {
			return s, true
		}
	}
	return "", false
}

func lookupPath(doc map[string]any, dotted string) (string, bool) {
	parts := strings.Split(dotted, ".")
	cur := doc
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return "", false
		}
		if i == len(parts)-1 {
			s, ok := v.(string)
			s = strings.TrimSpace(s)
			return s, ok && s != ""
		}
		if cur, ok = v.(map[string]any); !ok {
			return "", false
		}
	}
	return "", false
}

// localDirs lists the IDE config roots searched for JetBrains quota files.
// Android Studio keeps its options under the Google vendor directory.
func localDirs(id provider.ID, env Environment) []string {
	if id != provider.JetBrains {
		return nil
	}
	var dirs []string
	for _, vendor := range []string{"JetBrains", "Google"} {
		dirs = append(dirs,
			filepath.Join(env.HomeDir, ".config", vendor),
			filepath.Join(env.HomeDir, "Library", "Application Support", vendor),
		)
	}
	return dirs
}

func joinKinds(kinds []provider.SourceKind) string {
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
