package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/chunker"
	"docchat/internal/helper"
	"docchat/internal/parser"
)

// chunksCmd is a dry run: it shows how a document would be split without
// embedding or indexing anything.
var chunksCmd = &cobra.Command{
	Use:   "chunks <file>",
	Short: "Print the chunks a document would be split into",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := parser.ExtractFile(args[0])
		if err != nil {
			return err
		}
		chunks, err := chunker.Split(text, cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
		if err != nil {
			return err
		}
		log.Info().Int("chunks", len(chunks)).Int("chunk_size", cfg.Chunker.ChunkSize).Int("overlap", cfg.Chunker.ChunkOverlap).Msg("Parsed content")
		helper.PrettyPrint(cmd.OutOrStdout(), chunks)
		return nil
	},
}
