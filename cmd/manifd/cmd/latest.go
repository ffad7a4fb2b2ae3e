package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manifd/manifd/internal/client"
)

var latestCmd = &cobra.Command{
	Use:   "latest <url>",
	Short: "Show the canonical revision",
	Long:  "Print the digest and sequence number of the current canonical manifest revision.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLatest,
}

func init() {
	rootCmd.AddCommand(latestCmd)
}

func runLatest(cmd *cobra.Command, args []string) error {
	c, err := client.New(args[0])
	if err != nil {
		return err
	}

	rev, err := c.Latest(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%d\t%s\t%s\n", rev.Digest, rev.Sequence, rev.Author, rev.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
