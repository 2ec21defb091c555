package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var callArgs []string

var callCmd = &cobra.Command{
	Use:   "call <server> <tool>",
	Short: "Invoke one tool through its input form",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		server, tool := args[0], args[1]

		panelID, err := app.panels.Open(ctx, server, tool)
		if err != nil {
			return err
		}
		defer app.panels.Close(panelID)

		for _, pair := range callArgs {
			key, value, found := strings.Cut(pair, "=")
			if !found {
				return fmt.Errorf("argument %q is not of the form field=value", pair)
			}

			if err := app.panels.SetValue(panelID, key, value); err != nil {
				return err
			}
		}

		result, err := app.panels.Execute(ctx, panelID)
		if err != nil {
			return err
		}

		fmt.Printf("%v\n", result.Result)
		return nil
	},
}

func init() {
	callCmd.Flags().StringArrayVar(
		&callArgs,
		"arg",
		nil,
		"form value as field=value; repeat for multiple fields",
	)

	rootCmd.AddCommand(callCmd)
}
