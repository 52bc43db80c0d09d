package beat

import (
	"math"
	"math/rand"
	"testing"

	"LyricStage/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dur(ms int64) *int64 {
	return &ms
}

func TestSingleBeatScenario(t *testing.T) {
	e := New([]model.Beat{{StartTime: 0, Duration: dur(500)}})

	assert := assert.New(t)
	assert.Equal(1.0, e.Update(50))

	mid := e.Update(300)
	assert.GreaterOrEqual(mid, 0.0)
	assert.LessOrEqual(mid, 1.0)
	assert.Equal(LowIntensity, mid)

	// 600 已经在节拍之外，按上一次的值衰减
	assert.InDelta(LowIntensity*IdleDecay, e.Update(600), 1e-9)
	assert.Nil(e.CurrentBeat())
}

func TestIntensityAtBeatStartIsMax(t *testing.T) {
	beats := []model.Beat{
		{StartTime: 0, Duration: dur(400)},
		{StartTime: 400, Duration: dur(400)},
		{StartTime: 800},
	}
	e := New(beats)

	for _, b := range beats {
		assert.Equal(t, MaxIntensity, e.Update(b.StartTime), "beat at %d", b.StartTime)
	}
}

func TestLinearDecaySegment(t *testing.T) {
	b := model.Beat{StartTime: 1000, Duration: dur(1000)}

	assert := assert.New(t)
	assert.Equal(1.0, IntensityAt(b, 1100))
	assert.InDelta(0.5, IntensityAt(b, 1200), 1e-9)
	assert.InDelta(0.0, IntensityAt(b, 1300), 1e-9)
	assert.Equal(LowIntensity, IntensityAt(b, 1301))
	assert.Equal(LowIntensity, IntensityAt(b, 1999))
}

func TestShortBeatSkipsDecay(t *testing.T) {
	// 200ms * 0.3 = 60ms，比峰值窗口还短
	b := model.Beat{StartTime: 0, Duration: dur(200)}

	assert.Equal(t, MaxIntensity, IntensityAt(b, 100))
	assert.Equal(t, LowIntensity, IntensityAt(b, 101))
}

func TestDefaultDurationWhenMissing(t *testing.T) {
	e := New([]model.Beat{{StartTime: 0}})

	e.Update(0)
	assert.NotNil(t, e.CurrentBeat())
	e.Update(499)
	assert.NotNil(t, e.CurrentBeat())
	e.Update(500)
	assert.Nil(t, e.CurrentBeat())
}

func TestIdleDecayFollowsPowerLaw(t *testing.T) {
	e := New([]model.Beat{{StartTime: 0, Duration: dur(500)}})
	last := e.Update(10)
	require.Equal(t, 1.0, last)

	prev := last
	for n := 1; n <= 30; n++ {
		got := e.Update(int64(1000 + n*50))
		assert.InDelta(t, last*math.Pow(IdleDecay, float64(n)), got, 1e-9)
		assert.Less(t, got, prev)
		prev = got
	}
}

func TestOverlappingBeatsPreferLatestStart(t *testing.T) {
	e := New([]model.Beat{
		{StartTime: 0},   // [0, 500)
		{StartTime: 300}, // [300, 800)
	})

	assert.Equal(t, MaxIntensity, e.Update(320))
	require.NotNil(t, e.CurrentBeat())
	assert.Equal(t, int64(300), e.CurrentBeat().StartTime)
}

func TestShortBeatInsideLongBeatFallsBack(t *testing.T) {
	e := New([]model.Beat{
		{StartTime: 0, Duration: dur(2000)},
		{StartTime: 100, Duration: dur(50)},
	})

	e.Update(1000)
	require.NotNil(t, e.CurrentBeat())
	assert.Equal(t, int64(0), e.CurrentBeat().StartTime)
}

func TestReset(t *testing.T) {
	e := New([]model.Beat{{StartTime: 0}})
	e.Update(10)
	e.Reset()

	assert.Equal(t, 0.0, e.Intensity())
	assert.Nil(t, e.CurrentBeat())
}

func TestIntensityAlwaysInRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	var beats []model.Beat
	var start int64
	for i := 0; i < 200; i++ {
		start += int64(rnd.Intn(700))
		b := model.Beat{StartTime: start}
		if rnd.Intn(3) > 0 {
			b.Duration = dur(int64(rnd.Intn(1200)) - 100)
		}
		beats = append(beats, b)
	}
	e := New(beats)

	for now := int64(-500); now < start+2000; now += 17 {
		v := e.Update(now)
		if v < 0 || v > 1 {
			t.Fatalf("intensity %f out of range at %d", v, now)
		}
	}
}
