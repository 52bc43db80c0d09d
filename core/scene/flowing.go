package scene

import (
	"math"
	"math/rand"
	"time"
	"unicode"

	"LyricStage/core/lyric"
	"LyricStage/model"

	"github.com/google/uuid"
)

// FlowingConfig 环绕场景参数
type FlowingConfig struct {
	ModelRadius   float64
	LayerSpacing  float64
	Layers        int
	MaxPhrases    int
	MinAngleGap   float64
	MaxPlacement  int
	MaxAge        float64 // 秒
	FadeStart     float64 // 秒
	RotationSpeed float64 // 弧度/秒
	ForwardSpeed  float64 // 进度/秒
}

// DefaultFlowingConfig 默认参数，字集中在模型周围较暗的区域
func DefaultFlowingConfig() FlowingConfig {
	return FlowingConfig{
		ModelRadius:   2.0,
		LayerSpacing:  0.1,
		Layers:        3,
		MaxPhrases:    4,
		MinAngleGap:   0.3,
		MaxPlacement:  20,
		MaxAge:        5.0,
		FadeStart:     3.0,
		RotationSpeed: 0.03,
		ForwardSpeed:  3.0,
	}
}

type circularGlyph struct {
	char           string
	source         int // 在短语文本中的 rune 下标
	angle          float64
	position       model.Vec3
	target         model.Vec3
	opacity        float64
	scale          float64
	highlighted    bool
	wasHighlighted bool
	movingForward  bool
	forward        float64
}

type circularPhrase struct {
	id         string
	text       string
	glyphs     []*circularGlyph
	active     bool
	createdAt  float64
	radius     float64
	yOffset    float64
	zOffset    float64
	startAngle float64
	endAngle   float64
}

func (p *circularPhrase) basePosition(angle float64) model.Vec3 {
	return model.Vec3{
		X: math.Cos(angle) * p.radius,
		Y: math.Sin(angle)*p.radius + p.yOffset,
		Z: p.zOffset,
	}
}

// FlowingScene 沿圆弧环绕排列的短语
type FlowingScene struct {
	cfg     FlowingConfig
	rnd     *rand.Rand
	phrases []*circularPhrase
	current *model.TimelineUnit
}

// NewFlowingScene 创建环绕场景，src 为 nil 时使用当前时间作为种子
func NewFlowingScene(cfg FlowingConfig, src rand.Source) *FlowingScene {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &FlowingScene{
		cfg: cfg,
		rnd: rand.New(src),
	}
}

func (s *FlowingScene) Mode() Mode { return ModeFlowing }

func (s *FlowingScene) Reset() {
	s.phrases = nil
	s.current = nil
}

// Render 推进一帧
func (s *FlowingScene) Render(in Input) *model.SceneState {
	if p := in.Window.Phrase; p != nil && (s.current == nil || p.Text != s.current.Text) {
		cp := *p
		s.current = &cp
		s.phrases = append(s.phrases, s.place(p.Text, in.Elapsed))
		if len(s.phrases) > s.cfg.MaxPhrases {
			s.phrases = s.phrases[len(s.phrases)-s.cfg.MaxPhrases:]
		}
	}

	hl, hasHighlight := lyric.FirstOccurrence(s.current, in.Window.Word, in.Now)
	wordEnded := in.Window.Word == nil || in.Now > in.Window.Word.EndTime

	kept := s.phrases[:0]
	for _, cp := range s.phrases {
		age := in.Elapsed - cp.createdAt
		if age > s.cfg.MaxAge || !cp.alive() {
			continue
		}

		cp.active = s.current != nil && cp.text == s.current.Text
		for _, g := range cp.glyphs {
			g.highlighted = cp.active && hasHighlight && hl.Contains(g.source)
			if g.highlighted {
				g.wasHighlighted = true
				if !g.movingForward {
					g.movingForward = true
					g.forward = 0
				}
			}

			if g.movingForward {
				s.fly(cp, g, in.Delta, wordEnded)
			} else {
				s.orbit(cp, g, in.Elapsed, age)
			}

			if in.Intensity > beatThreshold && cp.active && !g.movingForward {
				g.scale *= 1 + in.Intensity*0.1
			}
		}
		kept = append(kept, cp)
	}
	s.phrases = kept

	return &model.SceneState{Mode: string(ModeFlowing), Flowing: s.snapshot()}
}

// alive 还有可见的字或者还有字在飞行中
func (p *circularPhrase) alive() bool {
	for _, g := range p.glyphs {
		if g.movingForward || g.opacity > 0.01 {
			return true
		}
	}
	return false
}

// fly 被唱到的字沿三次缓出曲线飞向镜头，单词结束后开始淡出
func (s *FlowingScene) fly(cp *circularPhrase, g *circularGlyph, delta float64, wordEnded bool) {
	g.forward += delta * s.cfg.ForwardSpeed
	progress := math.Min(g.forward, 1)
	g.position = lerpVec(cp.basePosition(g.angle), g.target, easeOutCubic(progress))

	switch {
	case !wordEnded:
		g.opacity = 1.2
	case progress >= 1:
		g.opacity = 0
	case progress > 0.4:
		f := (progress - 0.4) / 0.6
		g.opacity = math.Max(0, 1.2*(1-f*f))
	default:
		g.opacity = 1.2
	}

	if progress < 0.8 {
		g.scale = 1 + math.Sin(progress*math.Pi)*0.4
	} else {
		shrink := (progress - 0.8) / 0.2
		g.scale = (1 + math.Sin(0.8*math.Pi)*0.4) * (1 - shrink)
	}
}

// orbit 未被唱到的字缓慢旋转，非当前短语 3 秒后开始淡出
func (s *FlowingScene) orbit(cp *circularPhrase, g *circularGlyph, elapsed, age float64) {
	g.position = cp.basePosition(g.angle + elapsed*s.cfg.RotationSpeed)

	fadeSpan := s.cfg.MaxAge - s.cfg.FadeStart
	switch {
	case !cp.active:
		g.opacity = 0.5
		if age > s.cfg.FadeStart {
			g.opacity = math.Max(0, 0.5*(1-(age-s.cfg.FadeStart)/fadeSpan))
		}
		g.scale = 0.85
	case !g.wasHighlighted && age > s.cfg.FadeStart:
		f := (age - s.cfg.FadeStart) / fadeSpan
		g.opacity = math.Max(0.3, 0.9*(1-f))
		g.scale = math.Max(0.8, 1.1*(1-f*0.3))
	default:
		g.opacity = 0.9
		g.scale = 1.1
	}
}

// place 为新短语寻找不与同层已有短语重叠的圆弧
func (s *FlowingScene) place(text string, now float64) *circularPhrase {
	type src struct {
		char  string
		index int
	}
	var chars []src
	i := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			chars = append(chars, src{char: string(r), index: i})
		}
		i++
	}

	n := len(chars)
	maxAngle := math.Min(math.Pi*1.2, float64(n)*0.2)

	var radius, start float64
	for attempts := 0; ; {
		layer := s.rnd.Intn(s.cfg.Layers)
		radius = s.cfg.ModelRadius + float64(layer)*s.cfg.LayerSpacing
		start = s.rnd.Float64() * math.Pi * 2
		attempts++
		if attempts >= s.cfg.MaxPlacement || !s.overlaps(start, start+maxAngle, radius) {
			break
		}
	}

	yOffset := (s.rnd.Float64() - 0.5) * 0.8
	zOffset := (s.rnd.Float64() - 0.5) * 0.4

	step := maxAngle / math.Max(float64(n-1), 1)
	adjusted := start - maxAngle/2

	cp := &circularPhrase{
		id:         uuid.NewString(),
		text:       text,
		createdAt:  now,
		radius:     radius,
		yOffset:    yOffset,
		zOffset:    zOffset,
		startAngle: adjusted,
		endAngle:   adjusted + maxAngle,
	}
	for idx, c := range chars {
		angle := adjusted + step*float64(idx)
		pos := cp.basePosition(angle)
		cp.glyphs = append(cp.glyphs, &circularGlyph{
			char:     c.char,
			source:   c.index,
			angle:    angle,
			position: pos,
			target:   model.Vec3{X: pos.X * 1.6, Y: pos.Y + 1.5, Z: pos.Z + 5},
			opacity:  0.7,
			scale:    1,
		})
	}
	return cp
}

func (s *FlowingScene) overlaps(start, end, radius float64) bool {
	gap := s.cfg.MinAngleGap
	for _, p := range s.phrases {
		if math.Abs(p.radius-radius) > 0.5 {
			continue
		}
		es, ee := normalizeAngle(p.startAngle), normalizeAngle(p.endAngle)
		ns, ne := normalizeAngle(start), normalizeAngle(end)
		if (ns >= es-gap && ns <= ee+gap) ||
			(ne >= es-gap && ne <= ee+gap) ||
			(ns <= es && ne >= ee) {
			return true
		}
	}
	return false
}

// snapshot 透明度低于 0.01 的字不输出
func (s *FlowingScene) snapshot() []model.FlowingPhraseState {
	out := make([]model.FlowingPhraseState, 0, len(s.phrases))
	for _, cp := range s.phrases {
		st := model.FlowingPhraseState{
			ID:     cp.id,
			Text:   cp.text,
			Active: cp.active,
			Radius: cp.radius,
		}
		for idx, g := range cp.glyphs {
			if g.opacity < 0.01 {
				continue
			}
			material := model.MaterialNormal
			switch {
			case g.highlighted:
				material = model.MaterialHighlighted
			case cp.active:
				material = model.MaterialActive
			}
			st.Glyphs = append(st.Glyphs, model.GlyphState{
				Char:        g.char,
				Index:       idx,
				Position:    g.position,
				Scale:       g.scale,
				Opacity:     g.opacity,
				Highlighted: g.highlighted,
				Material:    material,
			})
		}
		out = append(out, st)
	}
	return out
}
