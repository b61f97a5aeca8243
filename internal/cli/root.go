package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/needha-erp/erpdesk/internal/config"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
	"github.com/needha-erp/erpdesk/internal/util"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// app carries what every subcommand needs. Flags fill it before
// PersistentPreRunE, which loads the config and builds the logger.
type app struct {
	cfg *config.Config
	log *zap.Logger

	configPath string
	apiURL     string
	replica    bool
	verbose    bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "erpdesk",
		Short: "Terminal client for the jewelry manufacturing ERP",
		Long: `erpdesk browses and updates the department tables of the jewelry
manufacturing ERP: orders, casting, filing, grinding, setting, polishing
and dull.

Tables can be searched, sorted, filtered by date, paged and selected, either
interactively (erpdesk browse) or as plain/JSON/YAML output (erpdesk list).
Batches are received with per-pouch weights and the stage loss is computed
before anything is sent to the backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	pf.StringVar(&a.configPath, "config", "", "Config file (default "+config.Path()+")")
	pf.StringVar(&a.apiURL, "api-url", "", "Backend URL (overrides api.base_url)")
	pf.BoolVar(&a.replica, "replica", false, "Read tables from the replica database instead of the API")

	rootCmd.SetVersionTemplate(fmt.Sprintf("erpdesk version %s\n  commit: %s\n  built:  %s\n", Version, CommitSHA, BuildDate))

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(a),
		newListCmd(a),
		newBrowseCmd(a),
		newSummaryCmd(a),
		newReceiveCmd(a),
		newIssueCmd(a),
		newApproveCmd(a),
		newLossCmd(),
		newWatchCmd(a),
		newCompletionCmd(),
	)

	return rootCmd
}

// setup loads configuration and builds the logger. A logger that is
// already set (tests) is kept.
func (a *app) setup() error {
	if a.noColor {
		styles.DisableColor()
	}

	path := a.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return util.NewError("Cannot read config file").
			WithContext(path).
			WithSuggestion("erpdesk config --list  # Check the current settings").
			Wrap(err)
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	a.cfg = cfg

	if a.log == nil {
		a.log, err = newLogger(a.verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	}
	return nil
}

// newLogger returns a console logger on stderr. Warnings only, unless
// verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.DisableStacktrace = true
	zc.DisableCaller = !verbose
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

func Execute() error {
	if err := newRootCmd().Execute(); err != nil {
		// Check if it's a structured DeskError
		var deskErr *util.DeskError
		if errors.As(err, &deskErr) {
			fmt.Fprintln(os.Stderr, deskErr.Format())
		} else {
			// Simple error - still format nicely
			fmt.Fprintln(os.Stderr, styles.ErrorMsg(err.Error()))
		}
		return err
	}
	return nil
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for erpdesk.

To load completions:

Bash:
  $ source <(erpdesk completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ erpdesk completion bash > /etc/bash_completion.d/erpdesk
  # macOS:
  $ erpdesk completion bash > $(brew --prefix)/etc/bash_completion.d/erpdesk

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ erpdesk completion zsh > "${fpath[1]}/_erpdesk"

Fish:
  $ erpdesk completion fish | source

  # To load completions for each session, execute once:
  $ erpdesk completion fish > ~/.config/fish/completions/erpdesk.fish

PowerShell:
  PS> erpdesk completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// No config or logger needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "erpdesk version %s\n", Version)
			fmt.Fprintf(out, "  commit: %s\n", CommitSHA)
			fmt.Fprintf(out, "  built:  %s\n", BuildDate)
		},
	}
}
