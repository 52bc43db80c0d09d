package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"LyricStage/core/scene"
	"LyricStage/core/stage"
	"LyricStage/core/timeline"
	"LyricStage/logger"
	"LyricStage/model"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound 会话不存在或已关闭
	ErrSessionNotFound = errors.New("session not found")
	// ErrSongNotFound 歌曲不在曲库中，也没有时间轴
	ErrSongNotFound = errors.New("song not found")
	// ErrUnknownControl 不支持的控制指令
	ErrUnknownControl = errors.New("unknown control")
)

// Session 一个正在运行的舞台
type Session struct {
	ID          string
	Song        model.Song
	Stage       *stage.Stage
	HasTimeline bool
	CreatedAt   time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Info 会话状态快照
type Info struct {
	ID          string     `json:"id"`
	Song        model.Song `json:"song"`
	Scene       string     `json:"scene"`
	State       string     `json:"state"`
	Position    int64      `json:"position"`
	Duration    int64      `json:"duration"`
	HasTimeline bool       `json:"hasTimeline"`
	Clients     int        `json:"clients"`
	CreatedAt   int64      `json:"createdAt"`
}

// ControlData 控制指令数据
type ControlData struct {
	Position *int64 `json:"position,omitempty"`
	Scene    string `json:"scene,omitempty"`
}

// Manager 会话业务管理器
type Manager struct {
	source    timeline.Source
	hub       *Hub
	cfg       stage.Config
	stageOpts []stage.Option

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager 创建会话管理器，opts 会用于每个会话的舞台
func NewManager(source timeline.Source, hub *Hub, cfg stage.Config, opts ...stage.Option) *Manager {
	return &Manager{
		source:    source,
		hub:       hub,
		cfg:       cfg,
		stageOpts: opts,
		sessions:  make(map[string]*Session),
	}
}

// Hub 获取 Hub 实例
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Create 为歌曲创建会话并启动舞台轮询。
// 曲库中的歌曲没有时间轴时使用空时间轴，舞台保持空闲。
func (m *Manager) Create(ctx context.Context, songID string, mode scene.Mode) (*Session, error) {
	song, inCatalog := model.FindSong(songID)

	tl, err := m.source.Load(ctx, songID)
	switch {
	case err == nil:
		if !inCatalog {
			song = tl.Song
			song.ID = songID
		}
	case errors.Is(err, timeline.ErrNotFound):
		if !inCatalog {
			return nil, fmt.Errorf("%s: %w", songID, ErrSongNotFound)
		}
		logger.Warn("歌曲没有时间轴，使用空时间轴", logger.String("songId", songID))
	default:
		return nil, fmt.Errorf("加载时间轴失败: %w", err)
	}

	hasTimeline := tl != nil
	if !hasTimeline {
		tl = timeline.Empty(0)
		tl.Song = song
	}

	cfg := m.cfg
	if mode != "" {
		cfg.Scene = mode
	}

	id := uuid.NewString()
	st, err := stage.New(id, tl, cfg, m.stageOpts...)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          id,
		Song:        song,
		Stage:       st,
		HasTimeline: hasTimeline,
		CreatedAt:   time.Now(),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	go func() {
		defer close(s.done)
		if err := st.Run(loopCtx, m.emitFrame); err != nil {
			logger.Error("舞台轮询异常退出", logger.String("sessionId", id), logger.ErrorField(err))
		}
	}()
	st.Player().Ready()

	logger.Info("会话已创建",
		logger.String("sessionId", id),
		logger.String("songId", song.ID),
		logger.String("scene", string(st.SceneMode())),
		logger.Bool("hasTimeline", hasTimeline))
	return s, nil
}

// emitFrame 没有订阅者的会话不序列化帧
func (m *Manager) emitFrame(f *model.Frame) {
	if m.hub == nil || m.hub.ClientCount(f.SessionID) == 0 {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		logger.Warn("序列化帧失败", logger.String("sessionId", f.SessionID), logger.ErrorField(err))
		return
	}
	if err := m.hub.BroadcastWSMessage(f.SessionID, &WSMessage{
		Type:      MsgTypeFrame,
		Data:      data,
		Timestamp: f.Timestamp,
	}); err != nil {
		logger.Warn("广播帧失败", logger.String("sessionId", f.SessionID), logger.ErrorField(err))
	}
}

// Get 获取会话
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Info 会话状态快照
func (m *Manager) Info(id string) (*Info, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return m.info(s), nil
}

func (m *Manager) info(s *Session) *Info {
	p := s.Stage.Player()
	info := &Info{
		ID:          s.ID,
		Song:        s.Song,
		Scene:       string(s.Stage.SceneMode()),
		State:       string(p.State()),
		Position:    p.Position(),
		Duration:    p.Duration(),
		HasTimeline: s.HasTimeline,
		CreatedAt:   s.CreatedAt.UnixMilli(),
	}
	if m.hub != nil {
		info.Clients = m.hub.ClientCount(s.ID)
	}
	return info
}

// List 所有会话，按创建时间排序
func (m *Manager) List() []*Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	out := make([]*Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, m.info(s))
	}
	return out
}

// Close 停止会话的轮询循环并断开客户端
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.cancel()
	<-s.done
	s.Stage.Close()
	if m.hub != nil {
		_ = m.hub.BroadcastWSMessage(id, &WSMessage{Type: MsgTypeClose})
		m.hub.CloseSession(id)
	}

	logger.Info("会话已关闭", logger.String("sessionId", id))
	return nil
}

// CloseAll 关闭所有会话，服务关闭时调用
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.Close(id)
	}
}

// Control 执行播放控制指令
func (m *Manager) Control(id string, typ MessageType, data ControlData) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}

	st := s.Stage
	switch typ {
	case MsgTypePlay:
		st.Play()
	case MsgTypePause:
		st.Pause()
	case MsgTypeStop:
		st.Stop()
	case MsgTypeSeek:
		if data.Position == nil {
			return fmt.Errorf("seek requires position")
		}
		st.Seek(*data.Position)
	case MsgTypeScene:
		mode, err := scene.ParseMode(data.Scene)
		if err != nil {
			return err
		}
		if err := st.SetScene(mode); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%q: %w", typ, ErrUnknownControl)
	}

	logger.Debug("会话控制",
		logger.String("sessionId", id),
		logger.String("type", string(typ)))
	return nil
}

// HandleMessage 处理客户端发来的控制消息，结果以 sync 或 error 消息回给该客户端
func (m *Manager) HandleMessage(ctx context.Context, client *Client, msg *WSMessage) {
	// 处理前端双重序列化的 data 字段
	data := msg.Data
	if len(data) > 0 && data[0] == '"' {
		var decoded string
		if err := json.Unmarshal(data, &decoded); err == nil {
			data = json.RawMessage(decoded)
		}
	}

	var control ControlData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &control); err != nil {
			logger.Warn("解析控制消息失败",
				logger.ErrorField(err),
				logger.String("data", string(data)))
			client.SendMessage(&WSMessage{Type: MsgTypeError, Data: errorData("invalid control data")})
			return
		}
	}

	if err := m.Control(client.SessionID, msg.Type, control); err != nil {
		client.SendMessage(&WSMessage{Type: MsgTypeError, Data: errorData(err.Error())})
		return
	}

	info, err := m.Info(client.SessionID)
	if err != nil {
		return
	}
	if payload, err := json.Marshal(info); err == nil {
		client.SendMessage(&WSMessage{Type: MsgTypeSync, Data: payload})
	}
}
