// Package beat 根据播放位置和节拍表估算当前的节拍强度。
package beat

import (
	"sort"

	"LyricStage/model"
)

const (
	// PeakWindow 节拍开始后保持最大强度的时长（毫秒）
	PeakWindow = 100.0
	// DecayRatio 线性衰减在节拍时长中所占的比例
	DecayRatio = 0.3

	MaxIntensity = 1.0
	LowIntensity = 0.1

	// IdleDecay 没有匹配节拍时每个周期的衰减系数
	IdleDecay = 0.9
)

// Estimator 节拍强度估算器，非并发安全，由 Stage 在轮询协程中独占使用
type Estimator struct {
	beats       []model.Beat
	maxDuration int64
	intensity   float64
	current     *model.Beat
}

// New 创建估算器，beats 需要按开始时间排序
func New(beats []model.Beat) *Estimator {
	var maxDuration int64
	for _, b := range beats {
		if l := b.Length(); l > maxDuration {
			maxDuration = l
		}
	}
	return &Estimator{
		beats:       beats,
		maxDuration: maxDuration,
	}
}

// Update 用当前播放位置重新计算强度
func (e *Estimator) Update(now int64) float64 {
	b := e.find(now)
	if b == nil {
		e.current = nil
		e.intensity = clamp(e.intensity * IdleDecay)
		return e.intensity
	}

	e.current = b
	e.intensity = IntensityAt(*b, now)
	return e.intensity
}

// Intensity 最近一次计算的强度
func (e *Estimator) Intensity() float64 {
	return e.intensity
}

// CurrentBeat 最近一次匹配到的节拍，没有时返回 nil
func (e *Estimator) CurrentBeat() *model.Beat {
	if e.current == nil {
		return nil
	}
	b := *e.current
	return &b
}

// Reset 清空衰减状态，停止或跳转时调用
func (e *Estimator) Reset() {
	e.intensity = 0
	e.current = nil
}

// find 返回包含 now 的节拍。节拍区间重叠时取开始时间最晚的那个，
// 这样新节拍一开始强度就回到峰值。
func (e *Estimator) find(now int64) *model.Beat {
	idx := sort.Search(len(e.beats), func(i int) bool {
		return e.beats[i].StartTime > now
	})
	for i := idx - 1; i >= 0; i-- {
		b := &e.beats[i]
		if b.StartTime+e.maxDuration <= now {
			break
		}
		if b.Contains(now) {
			return b
		}
	}
	return nil
}

// IntensityAt 计算 now 时刻在节拍 b 内的强度：
// 前 PeakWindow 毫秒为 1.0，随后线性衰减到 duration*DecayRatio 处，之后保持 LowIntensity。
func IntensityAt(b model.Beat, now int64) float64 {
	elapsed := float64(now - b.StartTime)
	decayEnd := float64(b.Length()) * DecayRatio

	var v float64
	switch {
	case elapsed <= PeakWindow:
		v = MaxIntensity
	case elapsed <= decayEnd:
		v = MaxIntensity - (elapsed-PeakWindow)/(decayEnd-PeakWindow)
	default:
		v = LowIntensity
	}
	return clamp(v)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > MaxIntensity {
		return MaxIntensity
	}
	return v
}
