package model

// Vec3 三维坐标
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Highlight 短语中被高亮的字符区间 [Start, End)，按 rune 计数
type Highlight struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains 判断下标是否在高亮区间内
func (h Highlight) Contains(i int) bool {
	return i >= h.Start && i < h.End
}

// Material 字形材质
const (
	MaterialNormal      = "normal"
	MaterialActive      = "active"
	MaterialHighlighted = "highlighted"
)

// GlyphState 单个字形的渲染状态
type GlyphState struct {
	Char        string  `json:"char"`
	Index       int     `json:"index"`
	Position    Vec3    `json:"position"`
	Scale       float64 `json:"scale"`
	Opacity     float64 `json:"opacity"`
	Highlighted bool    `json:"highlighted"`
	Material    string  `json:"material"`
}

// PhraseSceneState 直线排列短语的渲染状态
type PhraseSceneState struct {
	Text          string       `json:"text"`
	Visible       bool         `json:"visible"`
	GroupScale    float64      `json:"groupScale"`
	GroupPosition Vec3         `json:"groupPosition"`
	LightLevel    float64      `json:"lightLevel"`
	Glyphs        []GlyphState `json:"glyphs"`
}

// FlowingPhraseState 环绕排列的一条短语
type FlowingPhraseState struct {
	ID     string       `json:"id"`
	Text   string       `json:"text"`
	Active bool         `json:"active"`
	Radius float64      `json:"radius"`
	Glyphs []GlyphState `json:"glyphs"`
}

// SceneState 场景状态，根据 Mode 填充其中一项
type SceneState struct {
	Mode    string               `json:"mode"`
	Phrase  *PhraseSceneState    `json:"phrase,omitempty"`
	Flowing []FlowingPhraseState `json:"flowing,omitempty"`
}

// Frame 每个轮询周期推送给客户端的一帧
type Frame struct {
	SessionID string        `json:"sessionId"`
	Seq       uint64        `json:"seq"`
	Position  int64         `json:"position"`
	State     string        `json:"state"`
	Intensity float64       `json:"intensity"`
	Beat      *Beat         `json:"beat,omitempty"`
	Char      *TimelineUnit `json:"char,omitempty"`
	Word      *TimelineUnit `json:"word,omitempty"`
	Phrase    *TimelineUnit `json:"phrase,omitempty"`
	Highlight *Highlight    `json:"highlight,omitempty"`
	Scene     *SceneState   `json:"scene,omitempty"`
	Timestamp int64         `json:"timestamp"`
}
