package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"LyricStage/core/player"
	"LyricStage/core/scene"
	"LyricStage/core/stage"
	"LyricStage/core/timeline"
	"LyricStage/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func testClient(hub *Hub, sessionID string) *Client {
	return NewClient(hub, nil, sessionID)
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return WSMessage{}
	}
}

// receiveType 跳过其他类型的消息（例如周期性的帧）
func receiveType(t *testing.T, c *Client, typ MessageType) WSMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.Send:
			require.True(t, ok, "send channel closed")
			var msg WSMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s message received", typ)
			return WSMessage{}
		}
	}
}

func TestHubBroadcastToSession(t *testing.T) {
	hub := startHub(t)
	a := testClient(hub, "s1")
	b := testClient(hub, "s1")
	other := testClient(hub, "s2")
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))
	require.True(t, hub.Register(other))
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 2 }, time.Second, time.Millisecond)

	require.NoError(t, hub.BroadcastWSMessage("s1", &WSMessage{Type: MsgTypeSync}))

	assert.Equal(t, MsgTypeSync, receive(t, a).Type)
	msg := receive(t, b)
	assert.Equal(t, "s1", msg.SessionID)
	assert.NotZero(t, msg.Timestamp)
	assert.Len(t, other.Send, 0)
}

func TestHubTargetedSend(t *testing.T) {
	hub := startHub(t)
	a := testClient(hub, "s1")
	b := testClient(hub, "s1")
	hub.Register(a)
	hub.Register(b)
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 2 }, time.Second, time.Millisecond)

	a.SendMessage(&WSMessage{Type: MsgTypePong})

	assert.Equal(t, MsgTypePong, receive(t, a).Type)
	assert.Never(t, func() bool { return len(b.Send) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := testClient(hub, "s1")
	hub.Register(slow)
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 1 }, time.Second, time.Millisecond)

	for i := 0; i < sendBufferSize+1; i++ {
		hub.Broadcast("s1", []byte(`{}`))
	}
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 0 }, time.Second, time.Millisecond)
}

func TestHubCloseSessionClosesSend(t *testing.T) {
	hub := startHub(t)
	c := testClient(hub, "s1")
	hub.Register(c)
	hub.CloseSession("s1")

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-c.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount("s1"))

	// 重复注销不会再次关闭通道
	assert.NotPanics(t, func() { hub.Unregister(c) })
}

func TestHubStopped(t *testing.T) {
	hub := NewHub()
	hub.Stop()
	hub.Stop()

	assert.False(t, hub.Register(testClient(hub, "s1")))
	hub.Broadcast("s1", []byte(`{}`))
	hub.CloseSession("s1")
}

func testTimeline() *model.Timeline {
	tl := &model.Timeline{
		Phrases: []model.TimelineUnit{{Text: "hello world", StartTime: 0, EndTime: 2000}},
		Words: []model.TimelineUnit{
			{Text: "hello", StartTime: 0, EndTime: 1000},
			{Text: "world", StartTime: 1000, EndTime: 2000},
		},
		Beats: []model.Beat{{StartTime: 0}},
	}
	tl.Normalize()
	return tl
}

func newTestManager(t *testing.T, src timeline.Source) (*Manager, *Hub, *player.ManualClock) {
	t.Helper()
	hub := startHub(t)
	clock := player.NewManualClock(time.Unix(1700000000, 0))
	cfg := stage.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	m := NewManager(src, hub, cfg, stage.WithClock(clock))
	t.Cleanup(m.CloseAll)
	return m, hub, clock
}

func staticSource(tl *model.Timeline) timeline.Source {
	return timeline.SourceFunc(func(_ context.Context, id string) (*model.Timeline, error) {
		if id == "ULcJ" || id == "custom" {
			return tl, nil
		}
		return nil, timeline.ErrNotFound
	})
}

func TestManagerCreateAndControl(t *testing.T) {
	m, _, clock := newTestManager(t, staticSource(testTimeline()))

	s, err := m.Create(context.Background(), "ULcJ", scene.ModeFlowing)
	require.NoError(t, err)
	assert.True(t, s.HasTimeline)
	assert.Equal(t, "ULcJ", s.Song.ID)
	assert.NotEmpty(t, s.Song.Title)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Control(s.ID, MsgTypePlay, ControlData{}))
	clock.Advance(500 * time.Millisecond)

	info, err := m.Info(s.ID)
	require.NoError(t, err)
	assert.Equal(t, string(player.StatePlaying), info.State)
	assert.Equal(t, int64(500), info.Position)
	assert.Equal(t, string(scene.ModeFlowing), info.Scene)
	assert.Equal(t, int64(2000), info.Duration)

	pos := int64(1500)
	require.NoError(t, m.Control(s.ID, MsgTypeSeek, ControlData{Position: &pos}))
	assert.Equal(t, int64(1500), s.Stage.Player().Position())

	assert.Error(t, m.Control(s.ID, MsgTypeSeek, ControlData{}))
	require.NoError(t, m.Control(s.ID, MsgTypeScene, ControlData{Scene: "phrase"}))
	assert.Equal(t, scene.ModePhrase, s.Stage.SceneMode())
	assert.Error(t, m.Control(s.ID, MsgTypeScene, ControlData{Scene: "spiral"}))
	assert.ErrorIs(t, m.Control(s.ID, "rewind", ControlData{}), ErrUnknownControl)

	require.NoError(t, m.Control(s.ID, MsgTypeStop, ControlData{}))
	assert.Equal(t, player.StateStopped, s.Stage.Player().State())

	assert.ErrorIs(t, m.Control("missing", MsgTypePlay, ControlData{}), ErrSessionNotFound)
}

func TestManagerCreateWithoutTimeline(t *testing.T) {
	m, _, _ := newTestManager(t, staticSource(testTimeline()))

	s, err := m.Create(context.Background(), "SuQO", "")
	require.NoError(t, err)
	assert.False(t, s.HasTimeline)
	assert.Equal(t, scene.ModePhrase, s.Stage.SceneMode())

	f := s.Stage.Tick(time.Now())
	assert.Nil(t, f.Phrase)
	assert.Equal(t, 0.0, f.Intensity)

	_, err = m.Create(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrSongNotFound)

	s, err = m.Create(context.Background(), "custom", "")
	require.NoError(t, err)
	assert.Equal(t, "custom", s.Song.ID)
}

func TestManagerCreateSourceError(t *testing.T) {
	boom := errors.New("redis down")
	m, _, _ := newTestManager(t, timeline.SourceFunc(func(context.Context, string) (*model.Timeline, error) {
		return nil, boom
	}))

	_, err := m.Create(context.Background(), "ULcJ", "")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, m.List())
}

func TestManagerBroadcastsFrames(t *testing.T) {
	m, hub, _ := newTestManager(t, staticSource(testTimeline()))
	s, err := m.Create(context.Background(), "ULcJ", "")
	require.NoError(t, err)

	c := testClient(hub, s.ID)
	hub.Register(c)

	msg := receiveType(t, c, MsgTypeFrame)
	assert.Equal(t, s.ID, msg.SessionID)

	var f model.Frame
	require.NoError(t, json.Unmarshal(msg.Data, &f))
	assert.Equal(t, s.ID, f.SessionID)
	require.NotNil(t, f.Phrase)
	assert.Equal(t, "hello world", f.Phrase.Text)
}

func TestManagerHandleMessage(t *testing.T) {
	m, hub, _ := newTestManager(t, staticSource(testTimeline()))
	s, err := m.Create(context.Background(), "ULcJ", "")
	require.NoError(t, err)

	c := testClient(hub, s.ID)
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount(s.ID) == 1 }, time.Second, time.Millisecond)

	// 前端可能把 data 序列化两次
	m.HandleMessage(context.Background(), c, &WSMessage{
		Type: MsgTypeSeek,
		Data: json.RawMessage(`"{\"position\":1200}"`),
	})
	sync := receiveType(t, c, MsgTypeSync)
	var info Info
	require.NoError(t, json.Unmarshal(sync.Data, &info))
	assert.Equal(t, int64(1200), info.Position)
	assert.Equal(t, 1, info.Clients)

	m.HandleMessage(context.Background(), c, &WSMessage{Type: "rewind"})
	errMsg := receiveType(t, c, MsgTypeError)
	var data ErrorData
	require.NoError(t, json.Unmarshal(errMsg.Data, &data))
	assert.Contains(t, data.Message, "unknown control")
}

func TestManagerClose(t *testing.T) {
	m, hub, _ := newTestManager(t, staticSource(testTimeline()))
	s, err := m.Create(context.Background(), "ULcJ", "")
	require.NoError(t, err)
	c := testClient(hub, s.ID)
	hub.Register(c)

	require.NoError(t, m.Close(s.ID))
	assert.False(t, s.Stage.Running())

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(s.ID), ErrSessionNotFound)

	require.Eventually(t, func() bool { return hub.ClientCount(s.ID) == 0 }, time.Second, time.Millisecond)
}

func TestManagerList(t *testing.T) {
	m, _, _ := newTestManager(t, staticSource(testTimeline()))
	a, err := m.Create(context.Background(), "ULcJ", "")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := m.Create(context.Background(), "SuQO", "")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	m.CloseAll()
	assert.Empty(t, m.List())
}

func TestManagerGivesEachStageItsOwnRandSource(t *testing.T) {
	hub := startHub(t)
	var calls atomic.Int32
	cfg := stage.DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.Scene = scene.ModeFlowing
	m := NewManager(staticSource(testTimeline()), hub, cfg,
		stage.WithRandSource(func() rand.Source {
			calls.Add(1)
			return rand.NewSource(1)
		}))
	t.Cleanup(m.CloseAll)

	// 多个环绕场景会话并发轮询
	for i := 0; i < 4; i++ {
		s, err := m.Create(context.Background(), "ULcJ", "")
		require.NoError(t, err)
		require.NoError(t, m.Control(s.ID, MsgTypePlay, ControlData{}))
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(4), calls.Load())
	m.CloseAll()
	assert.Empty(t, m.List())
}
