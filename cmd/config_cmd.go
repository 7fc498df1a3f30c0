package cmd

import (
	"fmt"
	"os"

	"github.com/theirongolddev/fuelcheck/internal/config"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfigDump,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file for errors",
	RunE:  runConfigValidate,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective configuration with secrets masked",
	RunE:  runConfigDump,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Println(configPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd, configDumpCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(_ *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %s:\n%v", config.ErrInvalid, configPath(), err)
	}
	if !config.Exists(flagConfig) {
		fmt.Printf("  No config file at %s, defaults are valid\n", configPath())
		return nil
	}
	fmt.Printf("  %s is valid (%d providers, %d enabled)\n",
		configPath(), len(e.cfg.Providers), len(e.cfg.EnabledProviders()))
	return nil
}

func runConfigDump(_ *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	if !config.Exists(flagConfig) {
		fmt.Printf("# %s does not exist; showing defaults\n", configPath())
	} else {
		fmt.Printf("# %s\n", configPath())
	}
	return toml.NewEncoder(os.Stdout).Encode(e.cfg.Masked())
}
