package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shieldnode/shieldnode/daemon"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/ulogger"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "shieldnode"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	tSettings := settings.NewSettings()
	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel))

	logger.Infof("%s %s (%s) on %s", progname, version, commit, tSettings.Network)

	if tSettings.ProfilerAddr != "" {
		go func() {
			logger.Infof("Starting profile on http://%s/debug/pprof", tSettings.ProfilerAddr)
			logger.Fatalf("%v", http.ListenAndServe(tSettings.ProfilerAddr, nil))
		}()
	}

	if tSettings.PrometheusAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(tSettings.PrometheusEndpoint, promhttp.Handler())

		go func() {
			logger.Infof("Starting prometheus endpoint on %s%s", tSettings.PrometheusAddr, tSettings.PrometheusEndpoint)
			logger.Fatalf("%v", http.ListenAndServe(tSettings.PrometheusAddr, mux))
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cs, err := daemon.New(ctx, logger, tSettings)
	if err != nil {
		logger.Fatalf("failed to open chain state: %v", err)
	}

	if err = cs.Start(ctx); err != nil {
		logger.Fatalf("failed to start chain state: %v", err)
	}

	<-ctx.Done()

	logger.Infof("Shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err = cs.Stop(stopCtx); err != nil {
		logger.Errorf("failed to stop chain state: %v", err)
		os.Exit(1)
	}
}
