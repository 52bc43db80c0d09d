// Package player 提供播放传输层：播放位置时钟、播放/暂停/停止/跳转以及事件监听。
// 它对应外部播放组件的公开接口，Stage 只通过这里读取播放位置。
package player

import (
	"sync"
	"time"
)

// State 播放状态
type State string

const (
	StateStopped State = "stop"
	StatePlaying State = "play"
	StatePaused  State = "pause"
)

// EventType 播放事件类型
type EventType string

const (
	EventVideoReady EventType = "videoready"
	EventPlay       EventType = "play"
	EventPause      EventType = "pause"
	EventStop       EventType = "stop"
	EventSeek       EventType = "seek"
	EventTimeUpdate EventType = "timeupdate"
)

// Event 播放事件
type Event struct {
	Type     EventType
	Position int64
}

// Listener 事件回调，在触发事件的协程中同步调用
type Listener func(Event)

// Player 播放传输层
type Player struct {
	mu        sync.RWMutex
	clock     Clock
	state     State
	duration  int64
	offset    int64 // 暂停或停止时的位置（毫秒）
	startAt   time.Time
	listeners map[int]Listener
	nextID    int
}

// Option 播放器选项
type Option func(*Player)

// WithClock 替换时钟，测试和离线模拟使用
func WithClock(c Clock) Option {
	return func(p *Player) {
		p.clock = c
	}
}

// New 创建播放器，duration 为歌曲总时长（毫秒），0 表示未知
func New(duration int64, opts ...Option) *Player {
	p := &Player{
		clock:     SystemClock{},
		state:     StateStopped,
		duration:  duration,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddListener 注册监听器，返回注销函数
func (p *Player) AddListener(l Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Ready 通知监听器时间轴已就绪
func (p *Player) Ready() {
	p.emit(Event{Type: EventVideoReady, Position: p.Position()})
}

// Play 开始或继续播放，已在播放时不做任何事
func (p *Player) Play() {
	p.mu.Lock()
	if p.state == StatePlaying {
		p.mu.Unlock()
		return
	}
	if p.duration > 0 && p.offset >= p.duration {
		p.offset = 0
	}
	p.startAt = p.clock.Now()
	p.state = StatePlaying
	pos := p.offset
	p.mu.Unlock()

	p.emit(Event{Type: EventPlay, Position: pos})
}

// Pause 暂停并记住当前位置
func (p *Player) Pause() {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	p.offset = p.positionLocked()
	p.state = StatePaused
	pos := p.offset
	p.mu.Unlock()

	p.emit(Event{Type: EventPause, Position: pos})
}

// Stop 停止并回到开头
func (p *Player) Stop() {
	p.mu.Lock()
	if p.state == StateStopped && p.offset == 0 {
		p.mu.Unlock()
		return
	}
	p.offset = 0
	p.state = StateStopped
	p.mu.Unlock()

	p.emit(Event{Type: EventStop, Position: 0})
}

// Seek 跳转到指定位置，位置会被限制在 [0, duration]
func (p *Player) Seek(position int64) {
	p.mu.Lock()
	if position < 0 {
		position = 0
	}
	if p.duration > 0 && position > p.duration {
		position = p.duration
	}
	p.offset = position
	if p.state == StatePlaying {
		p.startAt = p.clock.Now()
	}
	p.mu.Unlock()

	p.emit(Event{Type: EventSeek, Position: position})
}

// Tick 每个轮询周期调用一次：播放到结尾时转为停止，播放中触发 timeupdate
func (p *Player) Tick() int64 {
	p.mu.Lock()
	if p.state != StatePlaying {
		pos := p.offset
		p.mu.Unlock()
		return pos
	}

	pos := p.positionLocked()
	if p.duration > 0 && pos >= p.duration {
		p.offset = 0
		p.state = StateStopped
		p.mu.Unlock()

		p.emit(Event{Type: EventStop, Position: 0})
		return 0
	}
	p.mu.Unlock()

	p.emit(Event{Type: EventTimeUpdate, Position: pos})
	return pos
}

// Position 当前播放位置（毫秒）
func (p *Player) Position() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positionLocked()
}

// State 当前播放状态
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Duration 歌曲总时长
func (p *Player) Duration() int64 {
	return p.duration
}

func (p *Player) positionLocked() int64 {
	if p.state != StatePlaying {
		return p.offset
	}
	pos := p.offset + p.clock.Now().Sub(p.startAt).Milliseconds()
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

func (p *Player) emit(e Event) {
	p.mu.RLock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
