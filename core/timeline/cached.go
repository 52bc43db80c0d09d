package timeline

import (
	"context"
	"encoding/json"
	"time"

	"LyricStage/logger"
	"LyricStage/model"
)

// DefaultCacheTTL 缓存时间轴的过期时间
const DefaultCacheTTL = 24 * time.Hour

// Cache 时间轴原始 JSON 的缓存。未命中时返回 nil, nil。
type Cache interface {
	Get(ctx context.Context, songID string) ([]byte, error)
	Set(ctx context.Context, songID string, data []byte, ttl time.Duration) error
}

// CachedSource 读穿缓存。缓存读写失败只记录日志，不影响加载结果。
type CachedSource struct {
	cache Cache
	next  Source
	ttl   time.Duration
}

// NewCachedSource 创建读穿缓存，ttl 为 0 时使用 DefaultCacheTTL
func NewCachedSource(cache Cache, next Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{cache: cache, next: next, ttl: ttl}
}

func (s *CachedSource) Load(ctx context.Context, songID string) (*model.Timeline, error) {
	data, err := s.cache.Get(ctx, songID)
	if err != nil {
		logger.Warn("读取时间轴缓存失败", logger.String("songId", songID), logger.ErrorField(err))
	} else if data != nil {
		tl, err := model.ParseTimeline(data)
		if err == nil {
			return tl, nil
		}
		logger.Warn("缓存中的时间轴无效", logger.String("songId", songID), logger.ErrorField(err))
	}

	tl, err := s.next.Load(ctx, songID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(tl); err != nil {
		logger.Warn("序列化时间轴失败", logger.String("songId", songID), logger.ErrorField(err))
	} else if err := s.cache.Set(ctx, songID, data, s.ttl); err != nil {
		logger.Warn("写入时间轴缓存失败", logger.String("songId", songID), logger.ErrorField(err))
	}
	return tl, nil
}
