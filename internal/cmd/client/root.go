package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the quiu client.
// It registers the channel command group.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "quiu",
		Short: "quiu client commands",
	}
	root.AddCommand(NewChannelCommand(baseURL))
	return root
}
