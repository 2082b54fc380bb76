package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"docchat/internal/chromemdb"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <snapshot>",
	Short: "Show the collections stored in an index snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := chromemdb.ReadSnapshot(args[0], cfg.Index.EncryptionKey)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d entries\n", name, counts[name])
		}
		return nil
	},
}
