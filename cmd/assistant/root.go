// cmd/assistant/root.go
package main

import (
	"fmt"

	"banking-assistant/internal/common/config"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "assistant",
		Short:         "Conversational banking assistant",
		Long:          "assistant answers customer questions about their accounts, cards, credit facilities and securities over HTTP, as a Zeebe job worker, or from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a config file (defaults to ./configs/config.yaml)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newAskCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func (o *rootOptions) load() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}
	return config.Load()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
