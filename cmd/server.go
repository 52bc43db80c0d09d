package cmd

import (
	"LyricStage/server"

	"github.com/spf13/cobra"
)

var (
	serverPort  string
	serverScene string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 LyricStage 服务器",
	Long:  `启动 HTTP 服务器，提供会话 API 和 WebSocket 帧推送`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serverPort != "" {
			cfg.Port = serverPort
		}
		if serverScene != "" {
			cfg.DefaultScene = serverScene
		}
		return server.Start(cfg)
	},
}

func init() {
	serverCmd.Flags().StringVarP(&serverPort, "port", "p", "", "监听端口，覆盖 PORT")
	serverCmd.Flags().StringVar(&serverScene, "scene", "", "默认场景 phrase|flowing，覆盖 DEFAULT_SCENE")
	rootCmd.AddCommand(serverCmd)
}
