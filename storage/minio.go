package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"LyricStage/config"
	"LyricStage/core/timeline"
	"LyricStage/logger"
	"LyricStage/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// TimelinePrefix 时间轴对象的前缀
const TimelinePrefix = "timelines/"

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	SongID       string
	Size         int64
	LastModified time.Time
	ETag         string
}

// TimelineStore 把时间轴 JSON 保存在 MinIO 存储桶中
type TimelineStore struct {
	client *minio.Client
	bucket string
}

// NewTimelineStore 创建 MinIO 客户端并确保存储桶存在
func NewTimelineStore(ctx context.Context, cfg *config.Config) (*TimelineStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	return &TimelineStore{client: client, bucket: cfg.MinioBucket}, nil
}

// ObjectName 歌曲对应的对象名
func ObjectName(songID string) string {
	return TimelinePrefix + songID + ".json"
}

// SongIDFromKey 从对象名中取出歌曲 ID，不是时间轴对象时返回 false
func SongIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, TimelinePrefix) || path.Ext(key) != ".json" {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, TimelinePrefix), ".json")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// Load 读取时间轴，对象不存在时返回 timeline.ErrNotFound
func (s *TimelineStore) Load(ctx context.Context, songID string) (*model.Timeline, error) {
	data, err := s.Get(ctx, songID)
	if err != nil {
		return nil, err
	}
	tl, err := model.ParseTimeline(data)
	if err != nil {
		return nil, fmt.Errorf("parse timeline object %s: %w", ObjectName(songID), err)
	}
	return tl, nil
}

// Get 读取时间轴原始 JSON
func (s *TimelineStore) Get(ctx context.Context, songID string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, ObjectName(songID), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, timeline.ErrNotFound
		}
		return nil, fmt.Errorf("获取对象失败: %w", err)
	}
	defer object.Close()

	// GetObject 不发请求，对象不存在的错误在读取时才返回
	data, err := io.ReadAll(object)
	if err != nil {
		if isNotFound(err) {
			return nil, timeline.ErrNotFound
		}
		return nil, fmt.Errorf("读取对象失败: %w", err)
	}
	return data, nil
}

// Put 校验后上传时间轴
func (s *TimelineStore) Put(ctx context.Context, songID string, data []byte) error {
	if _, err := model.ParseTimeline(data); err != nil {
		return fmt.Errorf("invalid timeline: %w", err)
	}
	_, err := s.client.PutObject(ctx, s.bucket, ObjectName(songID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("上传时间轴失败: %w", err)
	}
	logger.Info("时间轴已上传",
		logger.String("bucket", s.bucket),
		logger.String("object", ObjectName(songID)),
		logger.Int("size", len(data)))
	return nil
}

// Delete 删除时间轴对象
func (s *TimelineStore) Delete(ctx context.Context, songID string) error {
	err := s.client.RemoveObject(ctx, s.bucket, ObjectName(songID), minio.RemoveObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return timeline.ErrNotFound
		}
		return fmt.Errorf("删除时间轴失败: %w", err)
	}
	return nil
}

// List 列出存储桶中的所有时间轴
func (s *TimelineStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    TimelinePrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		id, ok := SongIDFromKey(object.Key)
		if !ok {
			continue
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			SongID:       id,
			Size:         object.Size,
			LastModified: object.LastModified,
			ETag:         object.ETag,
		})
	}
	return objects, nil
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

var _ timeline.Source = (*TimelineStore)(nil)
