// export-recent-survivors 把最近的生存者归档导出为 Excel 文件
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"rescue-console/internal/client"
	"rescue-console/internal/config"
	"rescue-console/internal/export"
	"time"

	logpkg "rescue-console/common/logger"

	"go.uber.org/zap"
)

func main() {
	hours := flag.Int("hours", client.DefaultRecentHours, "archive window in hours")
	out := flag.String("out", "", "output file (default recent_survivors_<timestamp>.xlsx)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, "console", "export-recent-survivors")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	path := *out
	if path == "" {
		path = fmt.Sprintf("recent_survivors_%s.xlsx", time.Now().Format("20060102_150405"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.Timeout*3)
	defer cancel()

	backend := client.NewBackendClient(cfg.Backend, log)
	records, err := backend.ListRecentSurvivors(ctx, *hours)
	if err != nil {
		log.Fatal("Failed to list recent survivors", zap.Error(err))
	}

	data, err := export.GenerateRecentSurvivors(records)
	if err != nil {
		log.Fatal("Failed to generate workbook", zap.Error(err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal("Failed to write workbook", zap.String("path", path), zap.Error(err))
	}

	log.Info("Recent survivors exported",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Int("hours", *hours),
	)
}
