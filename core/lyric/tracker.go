// Package lyric 根据播放位置找出当前正在播放的字符、单词和短语。
package lyric

import (
	"sort"

	"LyricStage/model"
)

// Window 某一时刻各轨道的激活单元，没有激活单元的轨道为 nil
type Window struct {
	Position int64               `json:"position"`
	Char     *model.TimelineUnit `json:"char,omitempty"`
	Word     *model.TimelineUnit `json:"word,omitempty"`
	Phrase   *model.TimelineUnit `json:"phrase,omitempty"`
}

// Idle 三个轨道都没有激活单元
func (w Window) Idle() bool {
	return w.Char == nil && w.Word == nil && w.Phrase == nil
}

// Tracker 歌词窗口跟踪器
type Tracker struct {
	chars   []model.TimelineUnit
	words   []model.TimelineUnit
	phrases []model.TimelineUnit
	window  Window
}

// NewTracker 创建跟踪器，时间轴需要已经 Normalize
func NewTracker(tl *model.Timeline) *Tracker {
	return &Tracker{
		chars:   tl.Chars,
		words:   tl.Words,
		phrases: tl.Phrases,
	}
}

// Update 重新计算 now 时刻的窗口
func (t *Tracker) Update(now int64) Window {
	t.window = Window{
		Position: now,
		Char:     Active(t.chars, now),
		Word:     Active(t.words, now),
		Phrase:   Active(t.phrases, now),
	}
	return t.window
}

// Window 最近一次计算的窗口
func (t *Tracker) Window() Window {
	return t.window
}

// Active 在有序且互不重叠的轨道中找到满足 startTime <= now < endTime 的单元。
// 返回值是副本。
func Active(track []model.TimelineUnit, now int64) *model.TimelineUnit {
	i := sort.Search(len(track), func(i int) bool {
		return track[i].StartTime > now
	}) - 1
	if i < 0 || !track[i].Contains(now) {
		return nil
	}
	u := track[i]
	return &u
}
