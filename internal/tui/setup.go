package tui

import (
	"slices"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/provider"

	"github.com/charmbracelet/huh"
)

// SetupValues holds the answers of the setup wizard.
type SetupValues struct {
	Enabled       []provider.ID
	ClaudeCookie  string
	CursorCookie  string
	FactoryCookie string
}

// SetupValuesFrom pre-fills the wizard from an existing config. Secrets are
// left blank so an empty answer keeps the stored value.
func SetupValuesFrom(cfg config.Config) SetupValues {
	return SetupValues{Enabled: cfg.EnabledProviders()}
}

// SetupForm builds the interactive setup form bound to v.
func SetupForm(v *SetupValues) *huh.Form {
	var options []huh.Option[provider.ID]
	for _, id := range provider.All() {
		spec := provider.MustLookup(id)
		options = append(options, huh.NewOption(spec.DisplayName, id).Selected(slices.Contains(v.Enabled, id)))
	}

	cookie := func(title string, dst *string) *huh.Input {
		return huh.NewInput().
			Title(title).
			Description("Cookie header from a logged-in browser session. Leave blank to keep the current value.").
			EchoMode(huh.EchoModePassword).
			Value(dst)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[provider.ID]().
				Title("Providers to check").
				Options(options...).
				Value(&v.Enabled),
		),
		huh.NewGroup(
			cookie("Claude cookie", &v.ClaudeCookie),
			cookie("Cursor cookie", &v.CursorCookie),
			cookie("Factory cookie", &v.FactoryCookie),
		),
	).WithTheme(huh.ThemeBase16())
}

// ApplySetup writes the wizard answers into cfg. Providers not selected are
// disabled but keep their settings.
func ApplySetup(cfg *config.Config, v SetupValues) {
	for _, id := range provider.All() {
		pc := cfg.Provider(id)
		enabled := slices.Contains(v.Enabled, id)
		if !enabled && !hasEntry(*cfg, id) {
			continue
		}
		pc.Enabled = enabled
		if pc.Source == provider.SourceAuto {
			pc.Source = ""
		}
		switch id {
		case provider.Claude:
			setCookie(&pc, v.ClaudeCookie)
		case provider.Cursor:
			setCookie(&pc, v.CursorCookie)
		case provider.Factory:
			setCookie(&pc, v.FactoryCookie)
		}
		cfg.Upsert(pc)
	}
}

func hasEntry(cfg config.Config, id provider.ID) bool {
	return slices.ContainsFunc(cfg.Providers, func(p config.ProviderConfig) bool { return p.ID == id })
}

func setCookie(pc *config.ProviderConfig, value string) {
	if v := strings.TrimSpace(value); v != "" {
		pc.CookieHeader = v
	}
}
