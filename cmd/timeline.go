package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"LyricStage/cache"
	"LyricStage/core/timeline"
	"LyricStage/model"
	"LyricStage/storage"

	"github.com/spf13/cobra"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "时间轴文件管理",
	Long:  `校验本地时间轴文件，上传或删除 MinIO 中的时间轴，查看存储桶中的时间轴。`,
}

var timelineValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "校验时间轴文件",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			tl, err := readTimeline(path)
			if err != nil {
				failed++
				fmt.Printf("✗ %s: %v\n", path, err)
				continue
			}
			fmt.Printf("✓ %s: %s\n", path, summarize(tl))
		}
		if failed > 0 {
			return fmt.Errorf("%d 个文件校验失败", failed)
		}
		return nil
	},
}

var timelinePushCmd = &cobra.Command{
	Use:   "push <file>...",
	Short: "上传时间轴到 MinIO，文件名（不含扩展名）作为歌曲 ID",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := storage.NewTimelineStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		redisReady := false
		if cfg.RedisEnabled {
			if err := cache.ConnectRedis(cfg); err != nil {
				fmt.Printf("Redis 不可用，缓存不会失效: %v\n", err)
			} else {
				redisReady = true
				defer cache.CloseRedis()
			}
		}

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			songID := songIDFromPath(path)
			if err := store.Put(ctx, songID, data); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if redisReady {
				if err := cache.NewTimelineCache(nil).Delete(ctx, songID); err != nil {
					fmt.Printf("清除缓存失败 %s: %v\n", songID, err)
				}
			}
			fmt.Printf("已上传 %s -> %s\n", path, storage.ObjectName(songID))
		}
		return nil
	},
}

var timelineDeleteCmd = &cobra.Command{
	Use:   "delete <songId>...",
	Short: "删除 MinIO 中的时间轴，同时清除 Redis 缓存",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := storage.NewTimelineStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		var tc deleter
		if cfg.RedisEnabled {
			if err := cache.ConnectRedis(cfg); err != nil {
				fmt.Printf("Redis 不可用，缓存不会失效: %v\n", err)
			} else {
				tc = cache.NewTimelineCache(nil)
				defer cache.CloseRedis()
			}
		}

		for _, songID := range args {
			if err := deleteTimeline(ctx, store, tc, songID); err != nil {
				return err
			}
			fmt.Printf("已删除 %s\n", storage.ObjectName(songID))
		}
		return nil
	},
}

// deleter 由 storage.TimelineStore 和 cache.TimelineCache 实现
type deleter interface {
	Delete(ctx context.Context, songID string) error
}

// deleteTimeline 先删对象再清缓存，对象不存在时仍然清缓存
func deleteTimeline(ctx context.Context, store, tc deleter, songID string) error {
	err := store.Delete(ctx, songID)
	if err != nil && !errors.Is(err, timeline.ErrNotFound) {
		return fmt.Errorf("%s: %w", songID, err)
	}
	if tc != nil {
		if cerr := tc.Delete(ctx, songID); cerr != nil {
			fmt.Printf("清除缓存失败 %s: %v\n", songID, cerr)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", songID, err)
	}
	return nil
}

var timelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出 MinIO 中的时间轴",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := storage.NewTimelineStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}
		objects, err := store.List(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("存储桶 %s 中共有 %d 个时间轴\n", cfg.MinioBucket, len(objects))
		for _, obj := range objects {
			title := ""
			if song, ok := model.FindSong(obj.SongID); ok {
				title = song.Title
			}
			fmt.Printf("  %-8s %10s  %s  %s\n",
				obj.SongID,
				storage.FormatSize(obj.Size),
				obj.LastModified.Format("2006-01-02 15:04:05"),
				title)
		}
		return nil
	},
}

var timelineShowCmd = &cobra.Command{
	Use:   "show <songId>",
	Short: "显示 MinIO 中时间轴的概要",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := storage.NewTimelineStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}
		return showTimeline(ctx, store, args[0])
	},
}

func showTimeline(ctx context.Context, store *storage.TimelineStore, songID string) error {
	tl, err := store.Load(ctx, songID)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", songID, summarize(tl))
	for i, p := range tl.Phrases {
		fmt.Printf("  %3d %7d-%-7d %s\n", i, p.StartTime, p.EndTime, p.Text)
	}
	return nil
}

func readTimeline(path string) (*model.Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return model.ParseTimeline(data)
}

func songIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func summarize(tl *model.Timeline) string {
	return fmt.Sprintf("时长 %dms, %d 短语, %d 单词, %d 字符, %d 节拍",
		tl.Duration, len(tl.Phrases), len(tl.Words), len(tl.Chars), len(tl.Beats))
}

func init() {
	timelineCmd.AddCommand(timelineValidateCmd, timelinePushCmd, timelineDeleteCmd, timelineListCmd, timelineShowCmd)
	rootCmd.AddCommand(timelineCmd)
}
