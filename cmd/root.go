package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/krau/taggerapi/config"
	"github.com/krau/taggerapi/onnx"
	"github.com/krau/taggerapi/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	flags   struct {
		host, port, prefix, apiAuth, modelDir string
	}
)

var rootCmd = &cobra.Command{
	Use:          "taggerapi",
	Short:        "HTTP API for image tagging models",
	Long:         "taggerapi serves ONNX image taggers over HTTP: single base64 images, batch tagging of a directory into .txt files, and model listing.",
	SilenceUsage: true,
	RunE:         run,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file")
	f.StringVar(&flags.host, "host", "", "listen host")
	f.StringVarP(&flags.port, "port", "p", "", "listen port")
	f.StringVar(&flags.prefix, "prefix", "", "route prefix")
	f.StringVar(&flags.apiAuth, "api-auth", "", "basic auth credentials, user1:pass1,user2:pass2")
	f.StringVar(&flags.modelDir, "model-dir", "", "directory holding one subdirectory per model")
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	slog.Info("Starting tagger API")

	config.SetPath(cfgFile)
	cfg := config.C()
	override := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	override("host", &cfg.Host, flags.host)
	override("port", &cfg.Port, flags.port)
	override("prefix", &cfg.Prefix, flags.prefix)
	override("api-auth", &cfg.APIAuth, flags.apiAuth)
	override("model-dir", &cfg.ModelDir, flags.modelDir)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", slog.String("error", err.Error()))
		return err
	}

	destroy, err := onnx.Init(cfg.Libonnx)
	if err != nil {
		slog.Error("Failed to initialize ONNX Runtime", slog.String("error", err.Error()))
		return err
	}
	defer destroy()

	// every inference in the process goes through this lock
	var inferenceLock sync.Mutex

	srv, err := server.Init(cfg, &inferenceLock, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize server", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Error("Failed to unload models", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
