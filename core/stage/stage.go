// Package stage 把播放器、节拍估计、歌词窗口和场景组合成一个按固定周期轮询的舞台。
// 每次轮询都从播放位置重新计算，不依赖上一帧的歌词状态。
package stage

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"LyricStage/core/beat"
	"LyricStage/core/lyric"
	"LyricStage/core/player"
	"LyricStage/core/scene"
	"LyricStage/logger"
	"LyricStage/model"
)

// DefaultPollInterval 默认轮询周期
const DefaultPollInterval = 50 * time.Millisecond

// ErrLoopRunning 同一个舞台只能运行一个轮询循环
var ErrLoopRunning = errors.New("stage loop already running")

// Config 舞台参数
type Config struct {
	PollInterval time.Duration
	Scene        scene.Mode
	SceneConfig  scene.Config
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		Scene:        scene.ModePhrase,
		SceneConfig:  scene.DefaultConfig(),
	}
}

// Option 舞台选项
type Option func(*Stage)

// WithClock 使用指定时钟，同时驱动播放器
func WithClock(c player.Clock) Option {
	return func(s *Stage) {
		s.clock = c
	}
}

// WithRandSource 为环绕场景提供随机源。每个舞台调用一次 newSource，
// rand.Source 不是并发安全的，同一组选项创建的多个舞台不能共用一个源。
func WithRandSource(newSource func() rand.Source) Option {
	return func(s *Stage) {
		if newSource != nil {
			s.src = newSource()
		}
	}
}

// Stage 单个会话的舞台
type Stage struct {
	id       string
	timeline *model.Timeline
	cfg      Config
	clock    player.Clock
	src      rand.Source
	player   *player.Player

	mu        sync.Mutex
	estimator *beat.Estimator
	tracker   *lyric.Tracker
	scene     scene.Scene
	started   time.Time
	last      time.Time
	seq       uint64

	// 播放器监听器只置位，真正的重置在下一次 Tick 中完成
	resetBeat  atomic.Bool
	resetScene atomic.Bool
	running    atomic.Bool

	removeListener func()
}

// New 创建舞台，timeline 需要已经 Normalize
func New(id string, timeline *model.Timeline, cfg Config, opts ...Option) (*Stage, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Scene == "" {
		cfg.Scene = scene.ModePhrase
	}

	s := &Stage{
		id:       id,
		timeline: timeline,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = player.SystemClock{}
	}

	sc, err := scene.New(cfg.Scene, cfg.SceneConfig, s.src)
	if err != nil {
		return nil, err
	}
	s.scene = sc
	s.estimator = beat.New(timeline.Beats)
	s.tracker = lyric.NewTracker(timeline)
	s.player = player.New(timeline.Duration, player.WithClock(s.clock))
	s.removeListener = s.player.AddListener(s.onPlayerEvent)
	return s, nil
}

func (s *Stage) onPlayerEvent(e player.Event) {
	switch e.Type {
	case player.EventStop:
		s.resetBeat.Store(true)
		s.resetScene.Store(true)
	case player.EventSeek:
		s.resetBeat.Store(true)
	}
}

// ID 会话 ID
func (s *Stage) ID() string { return s.id }

// Timeline 舞台使用的时间轴
func (s *Stage) Timeline() *model.Timeline { return s.timeline }

// Player 播放器
func (s *Stage) Player() *player.Player { return s.player }

// Play 开始播放
func (s *Stage) Play() { s.player.Play() }

// Pause 暂停
func (s *Stage) Pause() { s.player.Pause() }

// Stop 停止并回到开头
func (s *Stage) Stop() { s.player.Stop() }

// Seek 跳转
func (s *Stage) Seek(position int64) { s.player.Seek(position) }

// SceneMode 当前场景类型
func (s *Stage) SceneMode() scene.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Mode()
}

// SetScene 切换场景，类型相同时不做任何事
func (s *Stage) SetScene(mode scene.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scene.Mode() == mode {
		return nil
	}
	sc, err := scene.New(mode, s.cfg.SceneConfig, s.src)
	if err != nil {
		return err
	}
	s.scene = sc
	logger.Debug("舞台场景已切换",
		logger.String("sessionId", s.id),
		logger.String("scene", string(mode)))
	return nil
}

// Tick 计算 now 时刻的一帧
func (s *Stage) Tick(now time.Time) *model.Frame {
	// 播放器事件会回调 onPlayerEvent，必须在加锁之前调用
	pos := s.player.Tick()
	state := s.player.State()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resetBeat.Swap(false) {
		s.estimator.Reset()
	}
	if s.resetScene.Swap(false) {
		s.scene.Reset()
	}

	if s.started.IsZero() {
		s.started = now
		s.last = now
	}
	delta := now.Sub(s.last).Seconds()
	if delta < 0 {
		delta = 0
	}
	s.last = now

	intensity := s.estimator.Update(pos)
	window := s.tracker.Update(pos)

	s.seq++
	frame := &model.Frame{
		SessionID: s.id,
		Seq:       s.seq,
		Position:  pos,
		State:     string(state),
		Intensity: intensity,
		Beat:      s.estimator.CurrentBeat(),
		Char:      window.Char,
		Word:      window.Word,
		Phrase:    window.Phrase,
		Timestamp: now.UnixMilli(),
	}
	if hl, ok := lyric.HighlightRange(window.Phrase, window.Word, pos); ok {
		frame.Highlight = &hl
	}
	frame.Scene = s.scene.Render(scene.Input{
		Now:       pos,
		Elapsed:   now.Sub(s.started).Seconds(),
		Delta:     delta,
		Window:    window,
		Intensity: intensity,
	})
	return frame
}

// Run 按轮询周期调用 Tick 并把结果交给 emit，直到 ctx 结束
func (s *Stage) Run(ctx context.Context, emit func(*model.Frame)) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			emit(s.Tick(s.clock.Now()))
		}
	}
}

// Running 轮询循环是否在运行
func (s *Stage) Running() bool {
	return s.running.Load()
}

// Close 注销播放器监听器
func (s *Stage) Close() {
	s.player.Stop()
	if s.removeListener != nil {
		s.removeListener()
	}
}
