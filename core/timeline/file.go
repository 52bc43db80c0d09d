package timeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"LyricStage/logger"
	"LyricStage/model"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// FileSource 从目录中读取 <songID>.json，读到的结果缓存在内存中，
// 文件变化后由 Watch 使失效。
type FileSource struct {
	dir      string
	debounce time.Duration

	mu      sync.RWMutex
	loaded  map[string]*model.Timeline
	pending map[string]struct{}
}

// NewFileSource 创建目录来源
func NewFileSource(dir string) *FileSource {
	return &FileSource{
		dir:      dir,
		debounce: 200 * time.Millisecond,
		loaded:   make(map[string]*model.Timeline),
		pending:  make(map[string]struct{}),
	}
}

// SetDebounce 设置文件变化合并的时间窗口
func (s *FileSource) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Dir 目录路径
func (s *FileSource) Dir() string {
	return s.dir
}

func (s *FileSource) path(songID string) string {
	return filepath.Join(s.dir, songID+".json")
}

// Load 读取歌曲的时间轴
func (s *FileSource) Load(ctx context.Context, songID string) (*model.Timeline, error) {
	if songID == "" || strings.ContainsAny(songID, `/\`) {
		return nil, fmt.Errorf("invalid song id %q: %w", songID, ErrNotFound)
	}

	s.mu.RLock()
	tl, ok := s.loaded[songID]
	s.mu.RUnlock()
	if ok {
		return tl, nil
	}

	data, err := os.ReadFile(s.path(songID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read timeline %s: %w", songID, err)
	}

	tl, err = model.ParseTimeline(data)
	if err != nil {
		return nil, fmt.Errorf("parse timeline %s: %w", songID, err)
	}

	s.mu.Lock()
	s.loaded[songID] = tl
	s.mu.Unlock()
	return tl, nil
}

// Save 写入时间轴文件，timeline push 之前的本地检查和测试使用
func (s *FileSource) Save(songID string, data []byte) error {
	if _, err := model.ParseTimeline(data); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path(songID), data, 0644)
}

// List 目录中所有时间轴的歌曲 ID
func (s *FileSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// Invalidate 丢弃内存中的副本
func (s *FileSource) Invalidate(songID string) {
	s.mu.Lock()
	delete(s.loaded, songID)
	s.mu.Unlock()
}

// Watch 监听目录变化直到 ctx 结束。短时间内的多次变化合并为一次失效。
func (s *FileSource) Watch(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create timeline dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	logger.Info("开始监听时间轴目录", logger.String("dir", s.dir))

	debounced := debounce.New(s.debounce)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			id := strings.TrimSuffix(filepath.Base(event.Name), ".json")
			s.mu.Lock()
			s.pending[id] = struct{}{}
			s.mu.Unlock()
			debounced(s.flush)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("时间轴目录监听错误", logger.ErrorField(err))
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *FileSource) flush() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		delete(s.loaded, id)
		ids = append(ids, id)
	}
	s.pending = make(map[string]struct{})
	s.mu.Unlock()

	if len(ids) > 0 {
		logger.Info("时间轴文件已变化", logger.Any("songs", ids))
	}
}
