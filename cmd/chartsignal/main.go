package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chartsignal/internal/intake"
	"chartsignal/internal/logger"
	"chartsignal/internal/metrics"
	"chartsignal/internal/session"
	"chartsignal/internal/view"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	format := flag.String("format", "text", "output format: text or json")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] chart.png [chart2.jpg ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	outFormat, err := view.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	m := metrics.NewMetrics(nil)
	stopMetrics := startMetricsServer(ctx, cfg.MetricsAddr, m)

	sess := initializeSession(ctx, cfg, initializePredictor(ctx, cfg), m)
	renderer := view.NewRenderer(outFormat)

	failed := 0
	for _, path := range flag.Args() {
		if ctx.Err() != nil {
			break
		}
		if err := analyze(ctx, sess, renderer, path); err != nil {
			failed++
		}
	}

	if out, err := renderer.History(sess.History()); err == nil {
		fmt.Print(out)
	}

	sess.Wait()
	stopMetrics()
	if err := logger.Shutdown(context.WithoutCancel(ctx)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shut down tracer: %v\n", err)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// analyze runs one chart through select, preview and submit, then prints the result
func analyze(ctx context.Context, sess *session.Session, renderer *view.Renderer, path string) error {
	f, err := intake.OpenPath(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	err = sess.Select(ctx, f)
	if err == nil {
		if err = sess.AwaitPreview(ctx); err != nil {
			return err
		}
		err = sess.Submit(ctx)
	}
	if errors.Is(err, session.ErrSuperseded) {
		return err
	}
	printSnapshot(renderer, sess.Snapshot())
	return err
}

func printSnapshot(renderer *view.Renderer, snap session.Snapshot) {
	out, err := renderer.Snapshot(snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering result: %v\n", err)
		return
	}
	fmt.Print(out)
}
