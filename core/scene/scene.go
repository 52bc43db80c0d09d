// Package scene 计算歌词字形每一帧的位置、缩放和透明度。
//
// 两种场景：
//   - phrase：当前短语横向排列，逐字淡入，当前单词放大并随节拍跳动
//   - flowing：短语沿圆弧环绕在模型周围，被唱到的字飞向镜头后淡出
//
// 场景只依赖输入的时间和歌词窗口，渲染由浏览器完成。
package scene

import (
	"fmt"
	"math/rand"

	"LyricStage/core/lyric"
	"LyricStage/model"
)

// Mode 场景类型
type Mode string

const (
	ModePhrase  Mode = "phrase"
	ModeFlowing Mode = "flowing"
)

// ParseMode 解析场景名称，空字符串返回 ModePhrase
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModePhrase:
		return ModePhrase, nil
	case ModeFlowing:
		return ModeFlowing, nil
	default:
		return "", fmt.Errorf("unknown scene mode %q", s)
	}
}

// Input 单帧输入
type Input struct {
	// Now 播放位置（毫秒）
	Now int64
	// Elapsed 场景创建以来的墙钟时间（秒），用于漂浮、旋转等与播放无关的动画
	Elapsed float64
	// Delta 距上一帧的墙钟时间（秒）
	Delta     float64
	Window    lyric.Window
	Intensity float64
}

// Scene 场景
type Scene interface {
	Mode() Mode
	Render(in Input) *model.SceneState
	Reset()
}

// Config 场景参数
type Config struct {
	FontSize       float64
	BaseY          float64
	AvailableWidth float64
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		FontSize:       0.4,
		BaseY:          2.0,
		AvailableWidth: 12.0,
	}
}

// New 按类型创建场景，src 为 nil 时使用随机种子
func New(mode Mode, cfg Config, src rand.Source) (Scene, error) {
	switch mode {
	case ModePhrase:
		return NewPhraseScene(cfg), nil
	case ModeFlowing:
		return NewFlowingScene(DefaultFlowingConfig(), src), nil
	default:
		return nil, fmt.Errorf("unknown scene mode %q", mode)
	}
}
