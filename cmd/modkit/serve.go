// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modkit/modkit/internal/bridge"
	"github.com/modkit/modkit/internal/watch"
)

func newServeCommand(app *App) *cobra.Command {
	var (
		host     string
		port     int
		token    string
		watchDir bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the progress/command bridge for UI clients",
		Long: `Start the bridge server. UI clients connect over a WebSocket, send
install, update, uninstall, check and enable commands and receive progress
events and registry snapshots.

The server listens on loopback only by default and prints the bearer token
clients must present. With --watch (or watch: true in the config) the mods
directory is rescanned whenever it changes on disk.

The server runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(cmd, runServe(cmd, app, serveOptions{
				host:  host,
				port:  port,
				token: token,
				watch: watchDir,
			}))
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "interface to listen on (default from config, 127.0.0.1)")
	cmd.Flags().IntVar(&port, "port", -1, "port to listen on, 0 picks a free one (default from config)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (default: random)")
	cmd.Flags().BoolVar(&watchDir, "watch", false, "rescan the mods directory when it changes")
	return cmd
}

type serveOptions struct {
	host  string
	port  int
	token string
	watch bool
}

func runServe(cmd *cobra.Command, app *App, opts serveOptions) error {
	ctx := cmd.Context()
	s, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	renderDiagnostics(app.stderr, s.diags)

	cfg := bridge.Config{
		Host:  s.cfg.Bridge.Host,
		Port:  s.cfg.Bridge.Port,
		Token: opts.token,
	}
	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.port >= 0 {
		cfg.Port = opts.port
	}

	srv := bridge.NewServer(s.engine, cfg,
		bridge.WithLogger(s.logger.WithPrefix("bridge")),
		bridge.WithMetrics(s.metrics),
	)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			s.logger.Warn("bridge shutdown", "err", err)
		}
	}()

	fmt.Fprintln(app.stdout, TitleStyle.Render("Bridge listening"))
	fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render("address"), srv.Address())
	fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render("url"), srv.URL())
	fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render("token"), srv.Token())
	fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render("mods"), s.reg.Root())

	watchErr := make(chan error, 1)
	if opts.watch || s.cfg.Watch {
		w, err := watch.NewRescanner(s.reg, 0, s.logger.WithPrefix("watch"))
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go func() { watchErr <- w.Run(watchCtx) }()
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("watching the mods directory for changes"))
	}

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return nil
	case err := <-srv.Err():
		return fmt.Errorf("bridge: %w", err)
	case err := <-watchErr:
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		<-ctx.Done()
		return nil
	}
}
