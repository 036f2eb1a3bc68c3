package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"certgallery/src/builder"
	"certgallery/src/common"
	"certgallery/src/config"
	"certgallery/src/watcher"
)

func main() {
	fmt.Println("certgallery - Certificate Gallery Builder")
	fmt.Println("=========================================")

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Failed to load config", "err", err)
	}

	logger := common.NewLogger(cfg.Log)
	logger.Info("Loaded config", "source", cfg.SourceDir, "target", cfg.TargetDir)

	site := builder.NewSiteBuilder(cfg, logger)

	result, err := site.Build()
	if err != nil {
		logger.Fatal("Build failed", "err", err)
	}
	for _, f := range result.Failures {
		logger.Warn("Not included", "file", f.Filename, "reason", f.Err)
	}

	switch result.Status {
	case builder.StatusEmpty:
		logger.Warn("No certificate images found, check source_dir", "source", cfg.SourceDir)
	case builder.StatusBuilt:
		logger.Info("Done", "certificates", len(result.Records), "page", result.PagePath)
	}

	if !cfg.Watch {
		if result.Status == builder.StatusEmpty {
			os.Exit(2)
		}
		return
	}

	w, err := watcher.NewWatcher(cfg, site.Rebuild, logger)
	if err != nil {
		logger.Fatal("Failed to create watcher", "err", err)
	}
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start watcher", "err", err)
	}

	logger.Info("Press Ctrl+C to stop")

	go func() {
		for event := range w.Events() {
			logger.Debug("Event", "type", event.Type, "file", event.FilePath)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	w.Stop()
}
