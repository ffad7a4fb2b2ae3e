package cmd

import (
	"fmt"
	"net"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manifd/manifd/internal/cas"
	"github.com/manifd/manifd/internal/revlog"
	"github.com/manifd/manifd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the manifest service",
	Long:  "Run the publish endpoint and read surface backed by the local data directory.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":8674", "listen address")
	serveCmd.Flags().Int64("max-manifest-size", server.DefaultMaxManifestSize, "maximum manifest size in bytes")
	serveCmd.Flags().Int("cache-size", 64, "in-memory object cache entries")
	serveCmd.Flags().Int("compression-level", 2, "zstd level for stored objects (1-3)")
	serveCmd.Flags().Bool("compression", true, "compress stored objects")

	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("max_manifest_size", serveCmd.Flags().Lookup("max-manifest-size"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	dataDir := getDataDir()
	store, err := cas.NewDiskStore(dataDir,
		mustInt(cmd, "cache-size"),
		mustInt(cmd, "compression-level"),
		mustBool(cmd, "compression"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	log, err := revlog.Open(filepath.Join(dataDir, "revlog"))
	if err != nil {
		return fmt.Errorf("open revision log: %w", err)
	}
	defer log.Close()

	srv := server.New(store, log,
		server.WithLogger(logger),
		server.WithMaxManifestSize(viper.GetInt64("max_manifest_size")))

	ln, err := net.Listen("tcp", viper.GetString("listen"))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx, ln)
}

func mustInt(cmd *cobra.Command, name string) int {
	v, _ := cmd.Flags().GetInt(name)
	return v
}

func mustBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
