// Package timeline 负责从不同来源加载歌曲的歌词时间轴和节拍数据。
//
// 来源按顺序组合：Redis 缓存、本地 JSON 目录、MinIO、分析服务 HTTP 接口。
// 没有数据的歌曲返回 ErrNotFound，调用方按空时间轴处理。
package timeline

import (
	"context"
	"errors"
	"fmt"

	"LyricStage/model"
)

// ErrNotFound 来源中没有这首歌的时间轴
var ErrNotFound = errors.New("timeline not found")

// Source 时间轴来源
type Source interface {
	Load(ctx context.Context, songID string) (*model.Timeline, error)
}

// SourceFunc 函数形式的 Source
type SourceFunc func(ctx context.Context, songID string) (*model.Timeline, error)

func (f SourceFunc) Load(ctx context.Context, songID string) (*model.Timeline, error) {
	return f(ctx, songID)
}

// Chain 依次尝试多个来源
type Chain []Source

// Load 返回第一个命中的结果。ErrNotFound 继续尝试下一个来源，其他错误直接返回。
func (c Chain) Load(ctx context.Context, songID string) (*model.Timeline, error) {
	for _, src := range c {
		tl, err := src.Load(ctx, songID)
		if err == nil {
			return tl, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("song %s: %w", songID, ErrNotFound)
}

// Empty 没有任何歌词和节拍的时间轴，找不到数据的歌曲使用它
func Empty(duration int64) *model.Timeline {
	return &model.Timeline{Duration: duration}
}
