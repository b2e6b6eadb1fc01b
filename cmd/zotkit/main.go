package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	zotkit "github.com/zotkit/zotkit/pkg"
)

var rootCmd = &cobra.Command{
	Use:     "zotkit",
	Short:   "An MCP server connecting AI assistants to your Zotero library.",
	Long:    ``,
	Version: fmt.Sprintf("v%s", zotkit.Version),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

var completionCmd = &cobra.Command{
	Use:   fmt.Sprintf("completion %s", strings.Join(completionShells, "|")),
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for zotkit.

The command prints a completion script to stdout. You can source it in your shell
or install it to the appropriate location for your shell to enable completions permanently.

Examples:

  Bash (current shell):
    $ source <(zotkit completion bash)

  Bash (persist):
    $ zotkit completion bash > /etc/bash_completion.d/zotkit

  Zsh:
    $ zotkit completion zsh > "${fpath[1]}/_zotkit"

  Fish:
    $ zotkit completion fish | source
    $ zotkit completion fish > ~/.config/fish/completions/zotkit.fish

  PowerShell:
    PS> zotkit completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             completionShells,
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of zotkit",
	Long:  `All software has versions. This is zotkit's`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(zotkit.Version)
	},
}

// newLogger builds the stderr console logger. Stdout stays clean for the
// MCP JSON-RPC stream.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func initCmd() {
	rootCmd.AddCommand(completionCmd, versionCmd, mcpCmd, indexCmd, librariesCmd)
}

func main() {
	// A .env next to the binary is a convenience for API keys; absence is
	// not an error.
	godotenv.Load()

	initCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
