package cmd

import (
	"fmt"
	"os"

	"LyricStage/config"
	"LyricStage/logger"
	"LyricStage/server"

	"github.com/spf13/cobra"
)

var (
	cfg        *config.Config
	logConsole bool
)

var rootCmd = &cobra.Command{
	Use:   "lyricstage",
	Short: "LyricStage 歌词舞台服务",
	Long:  `按歌词时间轴和节拍驱动歌词可视化，通过 HTTP 和 WebSocket 推送每一帧舞台状态。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		initLogger(cfg, cmd.Name() == "trace")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func initLogger(cfg *config.Config, stderr bool) {
	logger.InitLogger(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
		Stderr:     stderr,
		Console:    logConsole,
	})
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "控制台输出可读格式日志")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
