package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/manifd/manifd"
	"github.com/manifd/manifd/internal/client"
	"github.com/manifd/manifd/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync <url> <path>",
	Short: "Synchronize a local manifest replica",
	Long: "Fetch the latest manifest revision and atomically replace the local file " +
		"when it changed. Intended as a pre-commit hook entry point; exit codes " +
		"distinguish transient (2), integrity (3), timeout (4), and lock (5) failures.",
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int("attempts", 5, "maximum sync attempts")
	syncCmd.Flags().Duration("budget", 10*time.Second, "total wall-clock budget")
	syncCmd.Flags().Bool("verbose", false, "log retry activity to stderr")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	url, path := args[0], args[1]

	c, err := client.New(url)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		if logger, err = newLogger(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	attempts, _ := cmd.Flags().GetInt("attempts")
	budget, _ := cmd.Flags().GetDuration("budget")

	s := syncer.New(c, path,
		syncer.WithLogger(logger),
		syncer.WithMaxAttempts(attempts),
		syncer.WithBudget(budget))

	result, err := s.Run(cmd.Context())
	if err != nil {
		return err
	}

	switch result.Status {
	case manifd.SyncUpdated:
		fmt.Fprintf(os.Stderr, "manifd: updated %s to %s (sequence %d)\n",
			path, result.Revision.Digest, result.Revision.Sequence)
	default:
		fmt.Fprintf(os.Stderr, "manifd: %s up to date (sequence %d)\n",
			path, result.Revision.Sequence)
	}
	return nil
}
