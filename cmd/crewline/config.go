package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewline/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect crewline configuration",
	Long: `Inspect crewline configuration.

Settings are resolved from, highest precedence first: environment variables
(ANTHROPIC_API_KEY, ` + config.EnvPrefix + `_*), the project ` + config.ProjectConfigName + `
found in the current directory or a parent, the user config file, and
built-in defaults.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		settings := cfg.Settings()
		settings["anthropic.api_key"] = config.MaskAPIKey(cfg.Anthropic.APIKey)
		if cfg.Memory.RedisPassword != "" {
			settings["memory.redis_password"] = "***"
		}

		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-26s %v\n", k, settings[k])
		}

		fmt.Fprintln(w)
		if !config.RequiresAPIKey(cfg) {
			fmt.Fprintln(w, "API key: not required (AWS Bedrock)")
			return nil
		}
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			printStatus(w, "!", "No API key found; set ANTHROPIC_API_KEY", color.FgYellow)
			return nil
		}
		fmt.Fprintf(w, "API key: %s (from %s)\n", config.MaskAPIKey(key), config.GetAPIKeySource(cfg))
		if err := config.ValidateAPIKey(key); err != nil {
			printStatus(w, "!", err.Error(), color.FgYellow)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file locations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "user:    %s\n", config.GetUserConfigPath())
		project := config.GetProjectConfigPath()
		if project == "" {
			project = "(none; create " + config.ProjectConfigName + ")"
		}
		fmt.Fprintf(w, "project: %s\n", project)
		if configPath != "" {
			fmt.Fprintf(w, "flag:    %s\n", configPath)
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to the user config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetUserConfigPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(config.Default()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		printStatus(cmd.OutOrStdout(), "✓", "Wrote "+path, color.FgGreen)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}
