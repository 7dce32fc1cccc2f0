package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ancsummary/pkg/pipeline"
)

// completionCommand generates shell completion scripts.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for ancsummary.

Bash:  source <(ancsummary completion bash)
Zsh:   ancsummary completion zsh > "${fpath[1]}/_ancsummary"
Fish:  ancsummary completion fish | source
PowerShell:
       ancsummary completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// completeFormats offers the output formats valid for kind.
func completeFormats(kind string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		valid := pipeline.TreeFormats
		if kind == pipeline.KindTransitions {
			valid = pipeline.TableFormats
		}
		var out []string
		for f := range valid {
			out = append(out, f)
		}
		slices.Sort(out)
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
