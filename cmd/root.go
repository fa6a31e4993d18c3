package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kitchen_service",
	Short: "Kitchen display service merging POS and online orders",
	Long: `A service that merges in-store table orders and online orders into
one prioritized kitchen display feed, ingests online-order events from
Azure Service Bus, and keeps running boards current over realtime
change notifications.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
