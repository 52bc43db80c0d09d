package lyric

import (
	"math"

	"LyricStage/model"
)

// Occurrences 返回 word 在 phrase 中所有出现位置（rune 下标），允许重叠
func Occurrences(phrase, word string) []int {
	p := []rune(phrase)
	w := []rune(word)
	if len(w) == 0 || len(w) > len(p) {
		return nil
	}

	var out []int
	for i := 0; i+len(w) <= len(p); i++ {
		match := true
		for j := range w {
			if p[i+j] != w[j] {
				match = false
				break
			}
		}
		if match {
			out = append(out, i)
		}
	}
	return out
}

// wordPlaying 单词两端都包含在内，与渲染侧判断一致
func wordPlaying(word *model.TimelineUnit, now int64) bool {
	return now >= word.StartTime && now <= word.EndTime
}

// HighlightRange 计算当前单词在短语中的高亮区间。
// 单词在短语中出现多次时，按短语的时间进度估算字符位置，选择最近的出现位置。
// 这是近似算法，歧义情况下可能高亮到错误的位置。
func HighlightRange(phrase, word *model.TimelineUnit, now int64) (model.Highlight, bool) {
	if phrase == nil || word == nil || phrase.Text == "" || word.Text == "" {
		return model.Highlight{}, false
	}
	if !wordPlaying(word, now) {
		return model.Highlight{}, false
	}

	occ := Occurrences(phrase.Text, word.Text)
	if len(occ) == 0 {
		return model.Highlight{}, false
	}

	start := occ[0]
	if len(occ) > 1 {
		length := len([]rune(phrase.Text))
		estimated := int(math.Floor(float64(length) * phrase.Progress(now)))

		best := occ[0]
		minDistance := abs(estimated - best)
		for _, c := range occ[1:] {
			if d := abs(estimated - c); d < minDistance {
				minDistance = d
				best = c
			}
		}
		start = best
	}

	return model.Highlight{Start: start, End: start + len([]rune(word.Text))}, true
}

// FirstOccurrence 只取第一次出现的位置，环绕场景使用
func FirstOccurrence(phrase, word *model.TimelineUnit, now int64) (model.Highlight, bool) {
	if phrase == nil || word == nil || phrase.Text == "" || word.Text == "" {
		return model.Highlight{}, false
	}
	if !wordPlaying(word, now) {
		return model.Highlight{}, false
	}

	occ := Occurrences(phrase.Text, word.Text)
	if len(occ) == 0 {
		return model.Highlight{}, false
	}
	return model.Highlight{Start: occ[0], End: occ[0] + len([]rune(word.Text))}, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
