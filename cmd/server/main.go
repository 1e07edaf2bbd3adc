package main

import (
	"flag"
	"os"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/nem12sql/pkg/config"
	"github.com/yurifrl/nem12sql/pkg/server"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "nem12sql",
	})

	var (
		cfgFile = flag.String("config", "", "Config file (default is config.yaml)")
		listen  = flag.String("listen", "", "Listen address (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Build(*cfgFile, nil)
	if err != nil {
		logger.Fatal("config error", "err", err)
	}

	addr := cfg.ListenAddr
	if *listen != "" {
		addr = *listen
	}

	srv := server.New(cfg, logger)
	logger.Info("starting server", "addr", addr)
	if err := srv.Start(addr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
