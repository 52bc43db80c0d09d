package lyric

import (
	"testing"

	"LyricStage/model"

	"github.com/stretchr/testify/assert"
)

func TestOccurrences(t *testing.T) {
	assert := assert.New(t)
	assert.Equal([]int{0, 1, 2}, Occurrences("ららら", "ら"))
	assert.Equal([]int{0, 1}, Occurrences("ららら", "らら"))
	assert.Equal([]int{2}, Occurrences("君と僕", "僕"))
	assert.Nil(Occurrences("君と僕", "空"))
	assert.Nil(Occurrences("短", "長い単語"))
	assert.Nil(Occurrences("abc", ""))
}

func TestHighlightSingleOccurrence(t *testing.T) {
	phrase := &model.TimelineUnit{Text: "君と僕", StartTime: 0, EndTime: 900}
	word := &model.TimelineUnit{Text: "僕", StartTime: 600, EndTime: 900}

	h, ok := HighlightRange(phrase, word, 700)
	assert.True(t, ok)
	assert.Equal(t, model.Highlight{Start: 2, End: 3}, h)
}

func TestHighlightPicksOccurrenceByProgress(t *testing.T) {
	// "abcabc": 出现位置 0 和 3
	phrase := &model.TimelineUnit{Text: "abcabc", StartTime: 0, EndTime: 600}
	first := &model.TimelineUnit{Text: "abc", StartTime: 0, EndTime: 300}
	second := &model.TimelineUnit{Text: "abc", StartTime: 300, EndTime: 600}

	h, ok := HighlightRange(phrase, first, 50)
	assert.True(t, ok)
	assert.Equal(t, 0, h.Start)

	h, ok = HighlightRange(phrase, second, 500)
	assert.True(t, ok)
	assert.Equal(t, 3, h.Start)
	assert.Equal(t, 6, h.End)
}

func TestHighlightTieKeepsEarlierOccurrence(t *testing.T) {
	// 长度 4，进度 0.5 → 估计位置 2，与 1 和 3 距离相同
	phrase := &model.TimelineUnit{Text: "xaxa", StartTime: 0, EndTime: 400}
	word := &model.TimelineUnit{Text: "a", StartTime: 0, EndTime: 400}

	h, ok := HighlightRange(phrase, word, 200)
	assert.True(t, ok)
	assert.Equal(t, 1, h.Start)
}

func TestHighlightNotPlaying(t *testing.T) {
	phrase := &model.TimelineUnit{Text: "君と僕", StartTime: 0, EndTime: 900}
	word := &model.TimelineUnit{Text: "僕", StartTime: 600, EndTime: 900}

	_, ok := HighlightRange(phrase, word, 500)
	assert.False(t, ok)

	// 结束时刻仍算作正在播放
	_, ok = HighlightRange(phrase, word, 900)
	assert.True(t, ok)

	_, ok = HighlightRange(phrase, nil, 700)
	assert.False(t, ok)
	_, ok = HighlightRange(nil, word, 700)
	assert.False(t, ok)
}

func TestHighlightWordMissingFromPhrase(t *testing.T) {
	phrase := &model.TimelineUnit{Text: "君と僕", StartTime: 0, EndTime: 900}
	word := &model.TimelineUnit{Text: "空", StartTime: 0, EndTime: 900}

	_, ok := HighlightRange(phrase, word, 100)
	assert.False(t, ok)
}

func TestFirstOccurrenceIgnoresProgress(t *testing.T) {
	phrase := &model.TimelineUnit{Text: "abcabc", StartTime: 0, EndTime: 600}
	second := &model.TimelineUnit{Text: "abc", StartTime: 300, EndTime: 600}

	h, ok := FirstOccurrence(phrase, second, 500)
	assert.True(t, ok)
	assert.Equal(t, model.Highlight{Start: 0, End: 3}, h)
}
