package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manifd/manifd/internal/client"
)

var logCmd = &cobra.Command{
	Use:   "log <url>",
	Short: "List revision history",
	Long:  "List manifest revisions in sequence order, oldest first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().Uint64("from", 0, "first sequence number to list")

	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	c, err := client.New(args[0])
	if err != nil {
		return err
	}

	from, _ := cmd.Flags().GetUint64("from")
	revs, err := c.Log(cmd.Context(), from)
	if err != nil {
		return err
	}

	if len(revs) == 0 {
		fmt.Println("(no revisions)")
		return nil
	}
	for _, rev := range revs {
		fmt.Printf("%d\t%s\t%s\t%s\n", rev.Sequence, rev.Digest, rev.Author, rev.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
