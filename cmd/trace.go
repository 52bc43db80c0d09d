package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"LyricStage/core/player"
	"LyricStage/core/scene"
	"LyricStage/core/stage"
	"LyricStage/logger"
	"LyricStage/model"
	"LyricStage/server"

	"github.com/spf13/cobra"
)

var (
	traceFile     string
	traceScene    string
	traceFrom     int64
	traceTo       int64
	traceInterval time.Duration
	traceJSON     bool
	traceSeed     int64
)

var traceCmd = &cobra.Command{
	Use:   "trace [songId]",
	Short: "离线回放时间轴，逐帧输出舞台状态",
	Long: `使用手动时钟回放一首歌的时间轴，不依赖真实时间。
可以用 --file 指定本地 JSON 文件，或者给出歌曲 ID 从配置的时间轴来源加载。
帧输出到 stdout，日志输出到 stderr。`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tl, err := loadTraceTimeline(cmd.Context(), args)
		if err != nil {
			return err
		}

		sc := server.StageConfig(cfg)
		if traceScene != "" {
			mode, err := scene.ParseMode(traceScene)
			if err != nil {
				return err
			}
			sc.Scene = mode
		}
		if traceInterval > 0 {
			sc.PollInterval = traceInterval
		}

		return runTrace(os.Stdout, tl, sc, traceFrom, traceTo, traceJSON)
	},
}

func loadTraceTimeline(ctx context.Context, args []string) (*model.Timeline, error) {
	if traceFile != "" {
		data, err := os.ReadFile(traceFile)
		if err != nil {
			return nil, err
		}
		return model.ParseTimeline(data)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("需要 --file 或歌曲 ID")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return server.BuildSources(ctx, cfg).Source.Load(ctx, args[0])
}

// runTrace 从 from 开始播放到 to（为 0 时播放到结尾），每个轮询周期输出一帧
func runTrace(w io.Writer, tl *model.Timeline, sc stage.Config, from, to int64, asJSON bool) error {
	clock := player.NewManualClock(time.Unix(0, 0))
	st, err := stage.New("trace", tl, sc,
		stage.WithClock(clock),
		stage.WithRandSource(func() rand.Source { return rand.NewSource(traceSeed) }))
	if err != nil {
		return err
	}
	defer st.Close()

	if to <= 0 || to > tl.Duration {
		to = tl.Duration
	}
	st.Seek(from)
	st.Play()

	logger.Info("开始回放",
		logger.String("song", tl.Song.ID),
		logger.Int64("from", from),
		logger.Int64("to", to),
		logger.Duration("interval", sc.PollInterval))

	enc := json.NewEncoder(w)
	frames := 0
	for {
		f := st.Tick(clock.Now())
		if f.State != string(player.StatePlaying) {
			break
		}
		frames++
		if asJSON {
			if err := enc.Encode(f); err != nil {
				return err
			}
		} else if _, err := fmt.Fprintln(w, formatFrame(f)); err != nil {
			return err
		}
		if f.Position >= to {
			break
		}
		clock.Advance(sc.PollInterval)
	}

	logger.Info("回放结束", logger.Int("frames", frames))
	return nil
}

// formatFrame 一行文本：位置、强度条、当前短语（高亮部分用 [] 标出）
func formatFrame(f *model.Frame) string {
	bar := strings.Repeat("#", int(f.Intensity*10+0.5))
	text := "-"
	if f.Phrase != nil {
		runes := []rune(f.Phrase.Text)
		if f.Highlight != nil && f.Highlight.End <= len(runes) {
			h := f.Highlight
			text = string(runes[:h.Start]) + "[" + string(runes[h.Start:h.End]) + "]" + string(runes[h.End:])
		} else {
			text = f.Phrase.Text
		}
	}
	return fmt.Sprintf("%7dms %-10s %.2f %s", f.Position, bar, f.Intensity, text)
}

func init() {
	traceCmd.Flags().StringVarP(&traceFile, "file", "f", "", "时间轴 JSON 文件")
	traceCmd.Flags().StringVar(&traceScene, "scene", "", "场景 phrase|flowing")
	traceCmd.Flags().Int64Var(&traceFrom, "from", 0, "起始位置（毫秒）")
	traceCmd.Flags().Int64Var(&traceTo, "to", 0, "结束位置（毫秒），0 表示到结尾")
	traceCmd.Flags().DurationVar(&traceInterval, "interval", 0, "帧间隔，默认使用 POLL_INTERVAL")
	traceCmd.Flags().BoolVar(&traceJSON, "json", false, "每帧输出一行 JSON")
	traceCmd.Flags().Int64Var(&traceSeed, "seed", 1, "流动场景的随机种子")
	rootCmd.AddCommand(traceCmd)
}
