package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vbridge/internal/config"
	"github.com/vango-dev/vbridge/internal/errors"
	"github.com/vango-dev/vbridge/pkg/htmlhost"
	"github.com/vango-dev/vbridge/pkg/output"
	"github.com/vango-dev/vbridge/pkg/script"
	"github.com/vango-dev/vbridge/pkg/session"
)

func runCmd(g *globals) *cobra.Command {
	var (
		page    string
		out     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Render a script into an HTML document",
		Long: `Run a script against an HTML document and write the result.

The document is empty unless --html names a page to start from. Elements
of that page with an id attribute are reachable through
document.getElementById.

The output target is a file path, "-" for stdout, or an s3://bucket/key
URL. It defaults to the "output" setting of vbridge.json.

Examples:
  vbridge run app.js
  vbridge run app.js --html index.html --out dist/index.html
  vbridge run app.js --out s3://reports/today.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if out != "" {
				cfg.Output = out
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc, err := renderScript(ctx, cfg, logger, args[0], page, timeout)
			if err != nil {
				return err
			}

			store, err := output.Open(ctx, cfg.Output, output.WithStdout(cmd.OutOrStdout()))
			if err != nil {
				return errors.New("B403").WithDetailf("output %q", cfg.Output).Wrap(err)
			}
			where, err := store.Save(ctx, "text/html; charset=utf-8", bytes.NewReader(doc))
			if err != nil {
				return errors.New("B403").WithDetailf("output %q", cfg.Output).Wrap(err)
			}
			logger.Info("document written", "script", args[0], "output", where, "bytes", len(doc))
			if where != "stdout" {
				success(cmd.ErrOrStderr(), "Wrote %s", where)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&page, "html", "", "HTML page to render into")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output target: file, - or s3://bucket/key")
	cmd.Flags().DurationVar(&timeout, "timeout", script.DefaultTimeout, "Script execution limit")

	return cmd
}

// renderScript runs the script at path against a fresh document and
// returns the rendered HTML.
func renderScript(ctx context.Context, cfg *config.Config, logger *slog.Logger, path, page string, timeout time.Duration) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("B501").WithDetailf("read %s", path).Wrap(err)
	}

	doc := htmlhost.New(htmlhost.WithLogger(logger))
	if page != "" {
		f, err := os.Open(page)
		if err != nil {
			return nil, errors.New("B403").WithDetailf("page %s", page).Wrap(err)
		}
		defer f.Close()
		if doc, err = htmlhost.Parse(f, htmlhost.WithLogger(logger)); err != nil {
			return nil, errors.New("B403").WithDetailf("page %s", page).Wrap(err)
		}
	}

	s := session.New(doc,
		session.WithContext(ctx),
		session.WithLogger(logger),
		session.WithKeyPrefix(cfg.Session.KeyPrefix),
		session.WithSanitizer(sanitizer(cfg)),
	)
	defer s.Close()

	rt := script.New(s, script.WithLogger(logger), script.WithTimeout(timeout))
	if err := rt.Run(ctx, filepath.Base(path), string(src)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
