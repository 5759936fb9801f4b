package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultAPI = "http://localhost:8080"

type rootFlags struct {
	api string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "cvctl",
		Short:         "Render CVs and manage CV templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	api := os.Getenv("CVCTL_API")
	if api == "" {
		api = defaultAPI
	}
	cmd.PersistentFlags().StringVar(&flags.api, "api", api, "API base URL (env CVCTL_API)")

	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newListCmd(flags))
	cmd.AddCommand(newPushCmd(flags))
	cmd.AddCommand(newPullCmd(flags))
	cmd.AddCommand(newDeleteCmd(flags))

	return cmd
}
