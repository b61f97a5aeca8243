package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/config"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Get and set erpdesk options",
		Long: `Get and set erpdesk configuration options.

Options:
` + config.GenerateHelpText() + `

Environment variables ` + config.EnvAPIURL + ` and ` + config.EnvReplicaURL + `
override the file when erpdesk runs; they are never written back.

Examples:
  erpdesk config api.base_url                       # Get value
  erpdesk config api.base_url http://erp.local:8080  # Set value
  erpdesk config table.page_size 25
  erpdesk config --list                             # List all config
  erpdesk config --path                             # Show config file location`,
		Args: cobra.MaximumNArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return config.ListKeys(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd, a, args)
		},
	}

	cmd.Flags().BoolP("list", "l", false, "List all configuration")
	cmd.Flags().Bool("path", false, "Show config file path")

	return cmd
}

func runConfig(cmd *cobra.Command, a *app, args []string) error {
	listAll, _ := cmd.Flags().GetBool("list")
	showPath, _ := cmd.Flags().GetBool("path")
	out := cmd.OutOrStdout()

	path := a.configPath
	if path == "" {
		path = config.Path()
	}

	if showPath {
		fmt.Fprintln(out, path)
		return nil
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if listAll {
		for _, key := range config.ListKeys() {
			value, _ := cfg.GetValue(key)
			fmt.Fprintf(out, "%s=%s\n", key, value)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("usage: erpdesk config <key> [value]")
	}

	key := args[0]

	// Get or set?
	if len(args) == 1 {
		value, ok := cfg.GetValue(key)
		if !ok {
			return fmt.Errorf("unknown config key: %s", key)
		}
		fmt.Fprintln(out, value)
		return nil
	}

	if err := cfg.SetValue(key, args[1]); err != nil {
		return err
	}
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintln(out, styles.SuccessMsg(fmt.Sprintf("Set %s", key)))
	return nil
}
