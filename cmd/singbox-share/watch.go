package main

import (
	"context"
	"fmt"

	"github.com/KapJI/singbox-users/internal/config"
	"github.com/KapJI/singbox-users/internal/metrics"
)

// runWatch prints the link once, then again after every valid settings
// change, until the context is cancelled.
func runWatch(ctx context.Context, env *cliEnv, args []string) error {
	var f shareFlags
	fs := newFlagSet("watch", env)
	f.register(fs, false)
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
	rs, err := config.NewReloadable(f.settings, sess.logger)
	if err != nil {
		return err
	}
	defer rs.Close()

	// Reloads only signal; each build reads the latest snapshot.
	changed := make(chan struct{}, 1)
	rs.Watch(func(_, _ *config.Settings) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	shared := metrics.NewShareMetrics(false)
	emit := func(s *config.Settings) {
		cur := newSession(env, s, shared)
		res, err := cur.build(f.client)
		if err != nil {
			cur.logger.Error("share build failed", "err", err)
			return
		}
		fmt.Fprintln(env.stdout, res.Link)
	}

	emit(rs.Get())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			emit(rs.Get())
		}
	}
}
