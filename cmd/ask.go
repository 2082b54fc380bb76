package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/session"
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Process a document and answer one question about it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.session.ProcessFile(ctx, args[0])
		if err != nil {
			return fmt.Errorf("process %s: %w", args[0], err)
		}
		log.Info().Int("chunks", count).Msg("Document processed")

		reply := a.session.Ask(ctx, args[1])
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", reply.Text)
		if showSources, _ := cmd.Flags().GetBool("sources"); showSources {
			for _, p := range reply.Context.Passages {
				fmt.Fprintf(out, "\n[%s score=%.3f]\n%s\n", p.Chunk.ID, p.Score, p.Chunk.Text)
			}
		}
		if reply.Kind == session.ReplyFailed {
			return reply.Err
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("sources", false, "print the retrieved passages after the answer")
}
