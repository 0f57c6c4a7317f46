package main

import (
	"fmt"
	"os"

	"chess-duel-be/internal/api/http"
	"chess-duel-be/internal/config"
	"chess-duel-be/internal/logger"
	"chess-duel-be/internal/metrics"
	"chess-duel-be/internal/service/engine"
	"chess-duel-be/internal/service/session"
	"chess-duel-be/internal/state"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "chess-duel-be",
		Short:         "Two-player real-time chess session server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile, cmd)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "app_config.json", "path to the JSON config file")
	flags.String("host", "0.0.0.0", "listen host")
	flags.Int("port", 3000, "listen port")
	flags.String("log_level", "info", "debug|info|warn|error")
	flags.String("start_fen", "", "starting position, empty for the standard one")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(configFile string, cmd *cobra.Command) error {
	// 加载配置
	cfg, err := config.InitConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	// 初始化日志器
	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return err
	}
	defer zap.L().Sync()

	eng, err := engine.NewChessEngine(cfg.StartFEN)
	if err != nil {
		return err
	}

	opts := []session.Option{
		session.WithQueueSize(cfg.QueueSize),
		session.WithClientBuffer(cfg.ClientBuffer),
	}

	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		opts = append(opts, session.WithMetrics(metrics.New(reg)))
		gatherer = reg
	}

	coord := session.NewCoordinator(eng, opts...)
	go coord.Start()
	defer coord.Stop()

	// 组装应用状态
	appState := state.NewAppState(cfg, coord, gatherer)

	zap.L().Info(
		"服务器启动",
		zap.String("addr", cfg.Addr()),
		zap.Bool("metrics", cfg.MetricsEnabled),
	)

	// 启动服务器
	return http.RunServer(appState)
}
