package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/parser"
	"docchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [file]",
	Short: "Open the interactive chat, optionally loading a document first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, _ := cmd.Flags().GetString("log-file")
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		setupLogger(f, cfg.LogLevel)

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		intro := fmt.Sprintf("Supported formats: %v. Logs go to %s.", parser.SupportedExtensions, logFile)
		if len(args) == 1 {
			count, err := a.session.ProcessFile(ctx, args[0])
			if err != nil {
				intro = "Error processing document: " + err.Error()
			} else {
				intro = fmt.Sprintf("Processed %s into %d chunks. Ask away.", args[0], count)
			}
		}

		p := tea.NewProgram(tui.New(ctx, a.session, intro), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Error().Err(err).Msg("TUI exited with error")
			return err
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().String("log-file", "docchat.log", "file that receives logs while the chat is open")
}
