package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vbridge/internal/config"
	"github.com/vango-dev/vbridge/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every command.
type globals struct {
	configDir string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "vbridge",
		Short: "Run DOM scripts against a host renderer",
		Long: `vbridge runs sandboxed scripts that build and update a document.

Scripts see a small DOM. Every change they make is diffed against the
rendered tree and sent to the host as ordered create, insert, update,
remove and destroy commands.

  vbridge run     render a script into an HTML document
  vbridge serve   drive remote renderers over a websocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&g.configDir, "config", "c", ".", "Directory containing vbridge.json")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (default from vbridge.json)")

	rootCmd.AddCommand(
		runCmd(g),
		serveCmd(g),
		versionCmd(),
	)
	return rootCmd
}

// load reads the configuration and builds the logger it describes.
func (g *globals) load(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configDir)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(stderr, opts)
	} else {
		handler = slog.NewTextHandler(stderr, opts)
	}
	return cfg, slog.New(handler), nil
}

// sanitizer maps the configured policy name onto a bluemonday policy.
func sanitizer(cfg *config.Config) *bluemonday.Policy {
	switch cfg.Markup.Sanitize {
	case config.SanitizeUGC:
		return bluemonday.UGCPolicy()
	case config.SanitizeStrict:
		return bluemonday.StrictPolicy()
	default:
		return nil
	}
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
