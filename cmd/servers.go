package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serversLoadFile   string
	serversConnectAll bool
	serversConnect    string
	serversEnable     string
	serversDisable    string
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Inspect and manage configured tool servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()

		if serversLoadFile != "" {
			raw, err := os.ReadFile(serversLoadFile)
			if err != nil {
				return err
			}

			if err := app.registry.Load(raw); err != nil {
				return err
			}
		}

		if serversEnable != "" {
			if err := app.registry.SetDisabled(serversEnable, false); err != nil {
				return err
			}
		}

		if serversDisable != "" {
			if err := app.registry.SetDisabled(serversDisable, true); err != nil {
				return err
			}
		}

		if serversConnect != "" {
			outcome, err := app.coordinator.ConnectOne(ctx, serversConnect)
			if err != nil {
				return err
			}

			if outcome.AlreadyConnected {
				fmt.Println("already connected:", serversConnect)
			}
		}

		if serversConnectAll {
			result, err := app.coordinator.ConnectAll(ctx)
			if err != nil {
				return err
			}

			fmt.Println(result.Message)
		}

		for _, server := range app.registry.Servers() {
			state := "enabled"
			if server.Config.Disabled {
				state = "disabled"
			}

			connected := "disconnected"
			if server.Connected {
				connected = "connected"
			}

			fmt.Printf(
				"%-24s %-9s %-13s tools:%d resources:%d\n",
				server.Name, state, connected,
				len(server.Config.Tools), len(server.Config.Resources),
			)
		}

		return nil
	},
}

func init() {
	serversCmd.Flags().StringVar(&serversLoadFile, "load", "", "load an mcpServers JSON configuration file")
	serversCmd.Flags().BoolVar(&serversConnectAll, "connect-all", false, "connect every enabled server")
	serversCmd.Flags().StringVar(&serversConnect, "connect", "", "connect one server by name")
	serversCmd.Flags().StringVar(&serversEnable, "enable", "", "enable a server by name")
	serversCmd.Flags().StringVar(&serversDisable, "disable", "", "disable a server by name (forces a logical disconnect)")

	rootCmd.AddCommand(serversCmd)
}
