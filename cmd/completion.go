package cmd

import (
	"os"
	"strings"

	"github.com/kernel/reviewkit/pkg/pagestate"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for reviewkit.

Besides command names, completions fill in saved pages (*.html) for the page
commands, the diff ids on a page for "page toggle", the extensions on a page
for --ext, and directories for "page scan".

Bash:
  $ source <(reviewkit completion bash)

Zsh:
  $ reviewkit completion zsh > "${fpath[1]}/_reviewkit"

Fish:
  $ reviewkit completion fish > ~/.config/fish/completions/reviewkit.fish

PowerShell:
  PS> reviewkit completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

// completeSavedPage completes the page argument of the page commands.
func completeSavedPage(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"html", "htm"}, cobra.ShellCompDirectiveFilterFileExt
}

// completeToggleArgs completes a saved page, then the diff ids found on it.
func completeToggleArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 1 {
		return completeSavedPage(cmd, args, toComplete)
	}
	doc, err := loadDocument(args[0])
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	ids := containerIDs(doc.Find(pagestate.DiffContainerSelector))
	return lo.Filter(ids, func(id string, _ int) bool {
		return strings.HasPrefix(id, toComplete)
	}), cobra.ShellCompDirectiveNoFileComp
}

// completePageExtensions completes --ext from the page named in args.
func completePageExtensions(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	doc, err := loadDocument(args[0])
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	groups := pagestate.GroupFilesByExtension(doc.Find(pagestate.DiffContainerSelector))
	return lo.Filter(groups.Extensions(), func(ext string, _ int) bool {
		return strings.HasPrefix(ext, toComplete)
	}), cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
