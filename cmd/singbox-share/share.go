package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/KapJI/singbox-users/internal/clipboard"
	"github.com/KapJI/singbox-users/internal/config"
	"github.com/KapJI/singbox-users/internal/log"
	"github.com/KapJI/singbox-users/internal/metrics"
	"github.com/KapJI/singbox-users/internal/share"
)

const defaultSettingsPath = "settings.yaml"

type shareFlags struct {
	settings string
	client   string
	copy     bool
}

func (f *shareFlags) register(fs *pflag.FlagSet, withCopy bool) {
	fs.StringVarP(&f.settings, "settings", "s", defaultSettingsPath, "settings YAML file")
	fs.StringVarP(&f.client, "client", "c", "", "client UUID or user name")
	if withCopy {
		fs.BoolVar(&f.copy, "copy", false, "copy the link to the terminal clipboard (OSC-52)")
	}
}

func (f *shareFlags) check() error {
	if f.client == "" {
		return errors.New("--client is required")
	}
	return nil
}

// session is one loaded settings snapshot with its logger and metrics.
type session struct {
	settings *config.Settings
	logger   *slog.Logger
	metrics  *metrics.ShareMetrics
}

// newSession wraps a settings snapshot. A nil m gets a fresh registry when
// the settings name a metrics textfile; long-running commands pass one
// registry so counters keep accumulating across snapshots.
func newSession(env *cliEnv, s *config.Settings, m *metrics.ShareMetrics) *session {
	if m == nil && s.MetricsTextfile != "" {
		m = metrics.NewShareMetrics(false)
	}
	return &session{
		settings: s,
		logger:   log.New(s.LogLevel, env.stderr),
		metrics:  m,
	}
}

func loadSession(env *cliEnv, path string) (*session, error) {
	s, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}
	return newSession(env, s, nil), nil
}

func (sess *session) build(clientRef string) (*share.Result, error) {
	req, err := resolveRequest(sess.settings, clientRef, sess.logger)
	if err != nil {
		return nil, err
	}
	opts := sess.settings.ShareOptions()
	if sess.metrics != nil {
		opts.Observer = sess.metrics
	}
	res, err := share.NewBuilder(opts).Build(req)
	sess.flushMetrics()
	if err != nil {
		return nil, err
	}
	sess.logger.Info("share built",
		"client", req.ClientID, "payload_bytes", len(res.Payload), "qr_chunks", len(res.QRChunks))
	return res, nil
}

func (sess *session) flushMetrics() {
	if sess.metrics == nil || sess.settings.MetricsTextfile == "" {
		return
	}
	if err := sess.metrics.WriteTextfile(sess.settings.MetricsTextfile); err != nil {
		sess.logger.Warn("write metrics textfile failed", "path", sess.settings.MetricsTextfile, "err", err)
	}
}

func runLink(_ context.Context, env *cliEnv, args []string) error {
	var f shareFlags
	fs := newFlagSet("link", env)
	f.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := f.check(); err != nil {
		return err
	}

	sess, err := loadSession(env, f.settings)
	if err != nil {
		return err
	}
	res, err := sess.build(f.client)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, res.Link)

	if f.copy {
		if err := clipboard.WriteTTY(res.Link, clipboard.OptionsFromEnv()); err != nil {
			return err
		}
		sess.logger.Info("link copied to clipboard")
	}
	return nil
}

func runQR(_ context.Context, env *cliEnv, args []string) error {
	var f shareFlags
	fs := newFlagSet("qr", env)
	f.register(fs, false)
	chunkSize := fs.Int("chunk-size", 0, "override qr_chunk_size from the settings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := f.check(); err != nil {
		return err
	}

	sess, err := loadSession(env, f.settings)
	if err != nil {
		return err
	}
	if *chunkSize != 0 {
		if *chunkSize < 0 {
			return fmt.Errorf("%w: %d", share.ErrInvalidChunkSize, *chunkSize)
		}
		sess.settings.QRChunkSize = *chunkSize
	}
	res, err := sess.build(f.client)
	if err != nil {
		return err
	}
	for i, chunk := range res.QRChunks {
		fmt.Fprintf(env.stderr, "[QR %d/%d] %d chars\n", i+1, len(res.QRChunks), len(chunk))
		fmt.Fprintln(env.stdout, chunk)
	}
	return nil
}
