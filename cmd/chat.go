package cmd

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/machinewire/mcpchat/pkg/ui"
)

var chatServersFile string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  longChat,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if chatServersFile != "" {
			raw, err := os.ReadFile(chatServersFile)
			if err != nil {
				return err
			}

			if err := app.registry.Load(raw); err != nil {
				return err
			}
		}

		program := tea.NewProgram(
			ui.New(app.engine, app.registry, app.transcript, app.hub),
			tea.WithAltScreen(),
		)

		_, err = program.Run()
		return err
	},
}

func init() {
	chatCmd.Flags().StringVar(
		&chatServersFile,
		"servers",
		"",
		"path to an mcpServers JSON configuration to load before starting",
	)

	rootCmd.AddCommand(chatCmd)
}

var longChat = `
Start an interactive terminal chat session. Messages are orchestrated
through the backend: the model decides which tools to call on connected
servers and the composed answer lands in the persistent transcript.
`
