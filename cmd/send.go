package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/machinewire/mcpchat/pkg/store"
)

var (
	sendProvider string
	sendModel    string
	sendAPIKey   string
)

/*
sendCmd sends one plain message to the selected provider through the
backend, without tool orchestration. Provider, model and API key choices
persist across runs.
*/
var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message to a model provider, no tools involved",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		providerID := sendProvider
		if providerID == "" {
			if saved, ok, _ := app.store.Get(store.KeyProvider); ok {
				providerID = saved
			} else {
				providerID = viper.GetString("chat.provider")
			}
		}

		model := sendModel
		if model == "" {
			if saved, ok, _ := app.store.Get(store.KeyModel); ok {
				model = saved
			} else {
				model = viper.GetString("chat.model")
			}
		}

		apiKey := sendAPIKey
		if apiKey == "" {
			apiKey, _, _ = app.store.Get(store.APIKeyFor(providerID))
		}

		// Remember the selection for the next invocation.
		_ = app.store.Set(store.KeyProvider, providerID)
		_ = app.store.Set(store.KeyModel, model)
		if sendAPIKey != "" {
			_ = app.store.Set(store.APIKeyFor(providerID), sendAPIKey)
		}

		reply, err := app.client.SendMessage(
			cmd.Context(), providerID, model, apiKey, strings.Join(args, " "),
		)
		if err != nil {
			return err
		}

		fmt.Println(reply)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendProvider, "provider", "", "provider id (persisted)")
	sendCmd.Flags().StringVar(&sendModel, "model", "", "model id (persisted)")
	sendCmd.Flags().StringVar(&sendAPIKey, "api-key", "", "API key for the provider (persisted)")

	rootCmd.AddCommand(sendCmd)
}
