package scene

import (
	"math"

	"LyricStage/core/lyric"
	"LyricStage/model"
)

const (
	charStagger   int64 = 50 // 逐字淡入间隔（毫秒）
	fadeStagger   int64 = 30 // 逐字淡出间隔，比淡入快
	fadeOutMinGap int64 = 500
	defaultGap    int64 = 1000

	visibleScale   = 1.1
	highlightScale = 1.3
	fadedScale     = 0.8

	beatThreshold      = 0.3
	vibrationThreshold = 0.2
)

// PhraseScene 横向排列的当前短语
type PhraseScene struct {
	cfg      Config
	phrase   *model.TimelineUnit
	chars    []string
	currentY float64
	targetY  float64
}

// NewPhraseScene 创建短语场景
func NewPhraseScene(cfg Config) *PhraseScene {
	return &PhraseScene{
		cfg:      cfg,
		currentY: cfg.BaseY,
		targetY:  cfg.BaseY,
	}
}

func (s *PhraseScene) Mode() Mode { return ModePhrase }

// Reset 清空当前短语
func (s *PhraseScene) Reset() {
	s.phrase = nil
	s.chars = nil
	s.currentY = s.cfg.BaseY
	s.targetY = s.cfg.BaseY
}

// Render 短语在结束后仍然保留，直到下一条短语替换或淡出完成
func (s *PhraseScene) Render(in Input) *model.SceneState {
	if p := in.Window.Phrase; p != nil && (s.phrase == nil || p.Text != s.phrase.Text || p.StartTime != s.phrase.StartTime) {
		cp := *p
		s.phrase = &cp
		s.chars = splitChars(p.Text)
	}

	s.targetY = s.cfg.BaseY
	if in.Intensity > beatThreshold {
		s.targetY += in.Intensity * 0.5
	}
	s.currentY += (s.targetY - s.currentY) * clamp(in.Delta*8, 0, 1)

	state := &model.PhraseSceneState{
		GroupScale: 1,
		GroupPosition: model.Vec3{
			Y: s.currentY + math.Sin(in.Elapsed*1.5)*0.05,
		},
		LightLevel: 0.5 + in.Intensity*0.3,
	}
	if in.Intensity > vibrationThreshold {
		state.GroupPosition.Z = math.Sin(in.Elapsed*20) * in.Intensity * 0.02
	}

	if s.phrase == nil || len(s.chars) == 0 {
		return &model.SceneState{Mode: string(ModePhrase), Phrase: state}
	}

	state.Text = s.phrase.Text
	spacing := s.cfg.FontSize * 2.0
	n := len(s.chars)
	startX := -float64(n-1) * spacing / 2
	if width := float64(n) * spacing; s.cfg.AvailableWidth > 0 && width > 0 {
		state.GroupScale = clamp(s.cfg.AvailableWidth/width, 0.2, 1.0)
	}

	hl, hasHighlight := lyric.HighlightRange(s.phrase, in.Window.Word, in.Now)
	fadingOut := in.Now >= s.phrase.EndTime && s.phrase.Gap(defaultGap) >= fadeOutMinGap

	state.Glyphs = make([]model.GlyphState, 0, n)
	for i, ch := range s.chars {
		g := model.GlyphState{
			Char:     ch,
			Index:    i,
			Position: model.Vec3{X: startX + float64(i)*spacing},
			Scale:    1,
			Material: model.MaterialNormal,
		}

		if in.Now >= s.phrase.StartTime+int64(i)*charStagger {
			g.Opacity = 1
			g.Scale = visibleScale
		}
		if fadingOut && in.Now >= s.phrase.EndTime+int64(i)*fadeStagger {
			g.Opacity = 0
			g.Scale = fadedScale
		}
		if hasHighlight && hl.Contains(i) {
			g.Highlighted = true
			g.Scale = highlightScale
			g.Material = model.MaterialHighlighted
		}
		if in.Intensity > beatThreshold && g.Opacity > 0 {
			if g.Highlighted {
				g.Scale = highlightScale + in.Intensity*0.3
			} else {
				g.Scale = 1 + in.Intensity*0.1
			}
		}

		if g.Opacity > 0 {
			state.Visible = true
		}
		state.Glyphs = append(state.Glyphs, g)
	}

	return &model.SceneState{Mode: string(ModePhrase), Phrase: state}
}

func splitChars(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}
