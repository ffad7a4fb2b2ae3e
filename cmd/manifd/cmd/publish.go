package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manifd/manifd/internal/client"
)

var publishCmd = &cobra.Command{
	Use:   "publish <url> <file>",
	Short: "Publish a new manifest revision",
	Long:  "Upload the given file as the new canonical manifest revision.",
	Args:  cobra.ExactArgs(2),
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().String("author", "", "author identifier recorded in the revision log")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	url, file := args[0], args[1]

	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	c, err := client.New(url)
	if err != nil {
		return err
	}

	author, _ := cmd.Flags().GetString("author")
	rev, err := c.Publish(cmd.Context(), content, author)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	fmt.Printf("%s\t%d\n", rev.Digest, rev.Sequence)
	return nil
}
