package lyric

import (
	"testing"

	"LyricStage/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTimeline() *model.Timeline {
	tl := &model.Timeline{
		Chars: []model.TimelineUnit{
			{Text: "ま", StartTime: 1000, EndTime: 1200},
			{Text: "た", StartTime: 1200, EndTime: 1400},
			{Text: "ね", StartTime: 1600, EndTime: 1800},
		},
		Words: []model.TimelineUnit{
			{Text: "また", StartTime: 1000, EndTime: 1400},
			{Text: "ね", StartTime: 1600, EndTime: 1800},
		},
		Phrases: []model.TimelineUnit{
			{Text: "またね", StartTime: 1000, EndTime: 1800},
			{Text: "ありがとう", StartTime: 2500, EndTime: 3500},
		},
	}
	tl.Normalize()
	return tl
}

func TestActiveIsHalfOpen(t *testing.T) {
	track := sampleTimeline().Chars

	assert := assert.New(t)
	assert.Nil(Active(track, 999))
	require.NotNil(t, Active(track, 1000))
	assert.Equal("ま", Active(track, 1000).Text)
	assert.Equal("た", Active(track, 1200).Text)
	assert.Nil(Active(track, 1400), "gap between units is idle")
	assert.Nil(Active(track, 1800))
	assert.Nil(Active(nil, 1000))
}

func TestTrackerUpdate(t *testing.T) {
	tr := NewTracker(sampleTimeline())

	w := tr.Update(1300)
	require.NotNil(t, w.Char)
	require.NotNil(t, w.Word)
	require.NotNil(t, w.Phrase)

	assert := assert.New(t)
	assert.Equal("た", w.Char.Text)
	assert.Equal("また", w.Word.Text)
	assert.Equal("またね", w.Phrase.Text)
	assert.Equal(int64(1300), tr.Window().Position)

	w = tr.Update(2000)
	assert.True(w.Idle())
	assert.True(tr.Window().Idle())
}

func TestTrackerDoesNotCarryStaleUnits(t *testing.T) {
	tr := NewTracker(sampleTimeline())
	tr.Update(1100)

	w := tr.Update(1500)
	assert.Nil(t, w.Char)
	assert.Nil(t, w.Word)
	assert.NotNil(t, w.Phrase)
}

func TestAtMostOneActiveUnitPerTrack(t *testing.T) {
	tl := sampleTimeline()
	tr := NewTracker(tl)

	for now := int64(0); now < 4000; now += 7 {
		w := tr.Update(now)
		for _, pair := range []struct {
			unit  *model.TimelineUnit
			track []model.TimelineUnit
		}{{w.Char, tl.Chars}, {w.Word, tl.Words}, {w.Phrase, tl.Phrases}} {
			matches := 0
			for _, u := range pair.track {
				if u.Contains(now) {
					matches++
				}
			}
			if matches > 1 {
				t.Fatalf("more than one active unit at %d", now)
			}
			if pair.unit != nil {
				if !(pair.unit.StartTime <= now && now < pair.unit.EndTime) {
					t.Fatalf("unit %q not active at %d", pair.unit.Text, now)
				}
			} else if matches != 0 {
				t.Fatalf("missed active unit at %d", now)
			}
		}
	}
}

func TestActiveReturnsCopy(t *testing.T) {
	tl := sampleTimeline()
	u := Active(tl.Words, 1000)
	u.Text = "changed"

	assert.Equal(t, "また", tl.Words[0].Text)
}
