package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/machinewire/mcpchat/pkg/provider"
	"github.com/machinewire/mcpchat/pkg/store"
)

var providersModels string

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List model providers and their models",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if providersModels != "" {
			adapter, err := provider.ForID(providersModels)
			if err != nil {
				return err
			}

			apiKey, _, err := app.store.Get(store.APIKeyFor(providersModels))
			if err != nil {
				return err
			}

			models, err := adapter.ListModels(cmd.Context(), apiKey)
			if err != nil {
				return err
			}

			for _, model := range models {
				fmt.Printf("%-40s %s\n", model.ID, model.Name)
			}

			return nil
		}

		for _, adapter := range provider.All() {
			fmt.Printf("%-12s %s\n", adapter.ID(), adapter.DisplayName())
		}

		return nil
	},
}

func init() {
	providersCmd.Flags().StringVar(
		&providersModels,
		"models",
		"",
		"list the models of one provider id",
	)

	rootCmd.AddCommand(providersCmd)
}
