package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatrix",
		Short: "Anthropic and OpenAI compatible gateway for AWS Bedrock",
		Long: `chatrix accepts Anthropic /v1/messages and OpenAI /v1/chat/completions
requests, relays them to AWS Bedrock and reports token usage and cost.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to YAML configuration file")
	root.AddCommand(newServeCommand(), newModelsCommand())
	return root
}

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
