package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dyike/CortexAgents/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.manager()
			if err != nil {
				return err
			}
			return showConfig(cmd.OutOrStdout(), mgr.Get())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.manager()
			if err != nil {
				return err
			}
			return validateConfig(cmd.OutOrStdout(), mgr.Get())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.manager()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mgr.Path())
			return nil
		},
	})

	return configCmd
}

// showConfig prints the config as YAML. Credentials are tagged out of the
// YAML form and shown only as configured or missing.
func showConfig(w io.Writer, cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	fmt.Fprintln(w, titleStyle.Render("Configuration"))
	fmt.Fprint(w, string(data))
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Credentials"))
	for _, c := range credentials(cfg) {
		state := errorStyle.Render("missing")
		if c.set {
			state = completedStyle.Render("configured")
		}
		fmt.Fprintf(w, "%-16s %s\n", c.name+":", state)
	}
	return nil
}

type credential struct {
	name     string
	set      bool
	required bool
}

func credentials(cfg config.Config) []credential {
	provider := strings.ToLower(cfg.LLMProvider)
	return []credential{
		{name: "deepseek", set: cfg.DeepSeekAPIKey != "", required: provider == "deepseek"},
		{name: "openai", set: cfg.OpenAIAPIKey != "", required: provider == "openai" || provider == "openrouter"},
		{name: "longport", set: cfg.HasLongport()},
		{name: "finnhub", set: cfg.FinnhubAPIKey != ""},
		{name: "coingecko", set: cfg.CoinGeckoAPIKey != ""},
		{name: "cryptocompare", set: cfg.CryptoCompareAPIKey != ""},
	}
}

// validateConfig fails on invalid settings or a missing model key; optional
// data vendor keys only warn since the hub falls back to keyless sources.
func validateConfig(w io.Writer, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		DisplayError(w, err)
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		DisplayError(w, err)
		return err
	}

	warnings := 0
	for _, c := range credentials(cfg) {
		if c.set {
			continue
		}
		if c.required {
			err := fmt.Errorf("%s API key is required for llm_provider %q", c.name, cfg.LLMProvider)
			DisplayError(w, err)
			return err
		}
		warnings++
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("! %s credentials not configured, falling back to other vendors", c.name)))
	}

	if warnings == 0 {
		DisplaySuccess(w, "configuration is valid")
	} else {
		DisplaySuccess(w, fmt.Sprintf("configuration is valid with %d warnings", warnings))
	}
	return nil
}
