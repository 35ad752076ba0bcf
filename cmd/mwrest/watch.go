package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wiki-saikou/mwrest-go/eventstream"
)

func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := a.flags("watch")
	types := fs.String("types", "", "comma-separated change types: edit, new, log, categorize")
	since := fs.Duration("since", 0, "replay events from this long ago")
	all := fs.Bool("all", false, "all wikis instead of the configured one")
	metricsAddr := fs.String("metrics", a.cfg.MetricsAddr, "serve Prometheus metrics on this address")
	streamURL := fs.String("stream", eventstream.DefaultStreamURL, "EventStreams URL")
	limit := fs.Int("n", 0, "stop after this many events")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return usagef("unexpected argument %q", fs.Arg(0))
	}

	var f eventstream.Filter
	if !*all {
		ep, err := a.cfg.endpoint()
		if err != nil {
			return err
		}
		f.Wiki = ep.WikiID()
	}
	if *types != "" {
		for _, t := range strings.Split(*types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Types = append(f.Types, t)
			}
		}
	}
	if *since > 0 {
		f.Since = time.Now().Add(-*since)
	}

	if *metricsAddr != "" {
		stop := serveMetrics(a, *metricsAddr)
		defer stop()
	}

	stream := eventstream.New(
		eventstream.WithStreamURL(*streamURL),
		eventstream.WithUserAgent(a.cfg.UserAgent),
		eventstream.WithLogger(a.logger),
	)
	a.logger.Info("watching recent changes", "wiki", f.Wiki, "types", f.Types)

	n := 0
	for rc, err := range stream.RecentChanges(ctx, f) {
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%d\t%s\n", rc.Wiki, rc.Type, rc.Title, rc.NewRevisionID(), rc.User)
		n++
		if *limit > 0 && n >= *limit {
			break
		}
	}
	return nil
}

// serveMetrics exposes /metrics until the returned func is called.
func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		a.logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", "error", err)
		}
	}
}
