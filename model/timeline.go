package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultBeatDuration 节拍缺少时长时使用的默认值（毫秒）
const DefaultBeatDuration int64 = 500

// TimelineUnit 歌词时间单元（字符 / 单词 / 短语）
type TimelineUnit struct {
	Text          string `json:"text"`
	StartTime     int64  `json:"startTime"` // 毫秒
	EndTime       int64  `json:"endTime"`   // 毫秒
	NextStartTime *int64 `json:"nextStartTime,omitempty"`
}

// Contains 判断 now 是否落在 [StartTime, EndTime) 内
func (u *TimelineUnit) Contains(now int64) bool {
	return u.StartTime <= now && now < u.EndTime
}

// Duration 单元时长（毫秒）
func (u *TimelineUnit) Duration() int64 {
	return u.EndTime - u.StartTime
}

// Progress 返回 now 在单元内的进度，范围 [0,1]
func (u *TimelineUnit) Progress(now int64) float64 {
	d := u.Duration()
	if d <= 0 {
		if now >= u.EndTime {
			return 1
		}
		return 0
	}
	p := float64(now-u.StartTime) / float64(d)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Gap 返回到下一个单元开始的间隔，没有下一个单元时返回 fallback
func (u *TimelineUnit) Gap(fallback int64) int64 {
	if u.NextStartTime == nil {
		return fallback
	}
	return *u.NextStartTime - u.EndTime
}

// Beat 节拍
type Beat struct {
	StartTime int64  `json:"startTime"`
	Duration  *int64 `json:"duration,omitempty"`
}

// Length 节拍时长，缺失或非正数时使用 DefaultBeatDuration
func (b Beat) Length() int64 {
	if b.Duration == nil || *b.Duration <= 0 {
		return DefaultBeatDuration
	}
	return *b.Duration
}

// EndTime 节拍结束时间（不包含）
func (b Beat) EndTime() int64 {
	return b.StartTime + b.Length()
}

// Contains 判断 now 是否落在 [StartTime, StartTime+Length) 内
func (b Beat) Contains(now int64) bool {
	return b.StartTime <= now && now < b.EndTime()
}

// Timeline 一首歌的完整时间轴，加载后只读
type Timeline struct {
	Song     Song           `json:"song"`
	Duration int64          `json:"duration"` // 歌曲总时长（毫秒）
	Chars    []TimelineUnit `json:"chars"`
	Words    []TimelineUnit `json:"words"`
	Phrases  []TimelineUnit `json:"phrases"`
	Beats    []Beat         `json:"beats"`
}

// ParseTimeline 解析 JSON 时间轴文档并进行规范化和校验
func ParseTimeline(data []byte) (*Timeline, error) {
	var tl Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("failed to decode timeline: %w", err)
	}
	tl.Normalize()
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return &tl, nil
}

// Normalize 按开始时间排序各轨道，补全短语的 NextStartTime 以及缺失的总时长
func (t *Timeline) Normalize() {
	sortUnits(t.Chars)
	sortUnits(t.Words)
	sortUnits(t.Phrases)
	sort.SliceStable(t.Beats, func(i, j int) bool {
		return t.Beats[i].StartTime < t.Beats[j].StartTime
	})

	for i := range t.Phrases {
		if i+1 < len(t.Phrases) {
			next := t.Phrases[i+1].StartTime
			t.Phrases[i].NextStartTime = &next
		} else {
			t.Phrases[i].NextStartTime = nil
		}
	}

	if t.Duration <= 0 {
		t.Duration = t.lastEnd()
	}
}

// Validate 检查单元时间范围以及轨道内是否重叠
func (t *Timeline) Validate() error {
	tracks := []struct {
		name  string
		units []TimelineUnit
	}{
		{"chars", t.Chars},
		{"words", t.Words},
		{"phrases", t.Phrases},
	}
	for _, track := range tracks {
		for i, u := range track.units {
			if u.EndTime < u.StartTime {
				return fmt.Errorf("%s[%d] %q ends before it starts (%d < %d)", track.name, i, u.Text, u.EndTime, u.StartTime)
			}
			if i > 0 && u.StartTime < track.units[i-1].EndTime {
				return fmt.Errorf("%s[%d] %q overlaps previous unit", track.name, i, u.Text)
			}
		}
	}
	for i, b := range t.Beats {
		if b.StartTime < 0 {
			return fmt.Errorf("beats[%d] has negative start time %d", i, b.StartTime)
		}
	}
	return nil
}

func (t *Timeline) lastEnd() int64 {
	var end int64
	for _, track := range [][]TimelineUnit{t.Chars, t.Words, t.Phrases} {
		if n := len(track); n > 0 && track[n-1].EndTime > end {
			end = track[n-1].EndTime
		}
	}
	if n := len(t.Beats); n > 0 && t.Beats[n-1].EndTime() > end {
		end = t.Beats[n-1].EndTime()
	}
	return end
}

func sortUnits(units []TimelineUnit) {
	sort.SliceStable(units, func(i, j int) bool {
		return units[i].StartTime < units[j].StartTime
	})
}
