package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/theirongolddev/fuelcheck/internal/cli"
	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/provider"
	"github.com/theirongolddev/fuelcheck/internal/source"
	"github.com/theirongolddev/fuelcheck/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var (
	flagEnableAll      bool
	flagClaudeCookie   string
	flagCursorCookie   string
	flagFactoryCookie  string
	flagNonInteractive bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	f := setupCmd.Flags()
	f.BoolVar(&flagEnableAll, "enable-all", false, "Enable every provider")
	f.StringVar(&flagClaudeCookie, "claude-cookie", "", "Claude web cookie header")
	f.StringVar(&flagCursorCookie, "cursor-cookie", "", "Cursor web cookie header")
	f.StringVar(&flagFactoryCookie, "factory-cookie", "", "Factory web cookie header")
	f.BoolVar(&flagNonInteractive, "non-interactive", false, "Apply flags without prompting")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	cfg := e.cfg

	values := tui.SetupValuesFrom(cfg)
	if flagEnableAll {
		values.Enabled = provider.All()
	}
	values.ClaudeCookie = flagClaudeCookie
	values.CursorCookie = flagCursorCookie
	values.FactoryCookie = flagFactoryCookie

	interactive := !flagNonInteractive && cli.IsTerminal(os.Stdin) && cli.IsTerminal(os.Stdout)
	if interactive {
		printSessionSummary(cfg)
		if err := tui.SetupForm(&values).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("  Setup cancelled, nothing saved.")
				return nil
			}
			return fmt.Errorf("setup form: %w", err)
		}
	}

	tui.ApplySetup(&cfg, values)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	path := configPath()
	if err := config.Save(flagConfig, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	e.logger.Debug("config saved", "event", "config_saved", "path", path, "enabled", len(values.Enabled))

	fmt.Println()
	fmt.Printf("  Saved to %s\n", path)
	fmt.Printf("  Enabled: %d providers\n", len(cfg.EnabledProviders()))
	fmt.Println("  Run `fuelcheck setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}

// printSessionSummary shows the local session logs cost reports would read.
func printSessionSummary(cfg config.Config) {
	fmt.Println()
	fmt.Println("  Welcome to fuelcheck!")
	fmt.Println()

	codex := source.CodexSessionsDir(cfg.General.CodexHome)
	if files, err := source.ScanCodex(codex); err == nil && len(files) > 0 {
		fmt.Printf("  Found %s Codex sessions in %s\n", cli.FormatNumber(int64(len(files))), codex)
	}
	claude := source.ClaudeProjectsDir(cfg.General.ClaudeDir)
	if files, err := source.ScanClaude(claude); err == nil && len(files) > 0 {
		fmt.Printf("  Found %s Claude sessions in %s (%d projects)\n",
			cli.FormatNumber(int64(len(files))), claude, source.CountProjects(files))
	}
	fmt.Println()
}
