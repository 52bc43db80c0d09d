package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeatLengthDefaults(t *testing.T) {
	zero := int64(0)
	custom := int64(320)

	assert := assert.New(t)
	assert.Equal(DefaultBeatDuration, Beat{StartTime: 10}.Length())
	assert.Equal(DefaultBeatDuration, Beat{StartTime: 10, Duration: &zero}.Length())
	assert.Equal(int64(320), Beat{StartTime: 10, Duration: &custom}.Length())
	assert.Equal(int64(510), Beat{StartTime: 10}.EndTime())
}

func TestBeatContainsIsHalfOpen(t *testing.T) {
	b := Beat{StartTime: 100}

	assert := assert.New(t)
	assert.False(b.Contains(99))
	assert.True(b.Contains(100))
	assert.True(b.Contains(599))
	assert.False(b.Contains(600))
}

func TestUnitProgressClamps(t *testing.T) {
	u := TimelineUnit{Text: "歌", StartTime: 1000, EndTime: 2000}

	assert := assert.New(t)
	assert.Equal(0.0, u.Progress(500))
	assert.Equal(0.5, u.Progress(1500))
	assert.Equal(1.0, u.Progress(2500))

	empty := TimelineUnit{StartTime: 1000, EndTime: 1000}
	assert.Equal(0.0, empty.Progress(999))
	assert.Equal(1.0, empty.Progress(1000))
}

func TestParseTimelineSortsAndLinksPhrases(t *testing.T) {
	doc := []byte(`{
		"song": {"id": "ULcJ"},
		"phrases": [
			{"text": "second", "startTime": 3000, "endTime": 4000},
			{"text": "first", "startTime": 0, "endTime": 2000}
		],
		"beats": [{"startTime": 500}, {"startTime": 0, "duration": 500}]
	}`)

	tl, err := ParseTimeline(doc)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal("first", tl.Phrases[0].Text)
	require.NotNil(t, tl.Phrases[0].NextStartTime)
	assert.Equal(int64(3000), *tl.Phrases[0].NextStartTime)
	assert.Nil(tl.Phrases[1].NextStartTime)
	assert.Equal(int64(1000), tl.Phrases[0].Gap(1000))
	assert.Equal(int64(1000), tl.Phrases[1].Gap(1000))
	assert.Equal(int64(0), tl.Beats[0].StartTime)
	assert.Equal(int64(4000), tl.Duration)
}

func TestParseTimelineRejectsOverlap(t *testing.T) {
	doc := []byte(`{"words": [
		{"text": "a", "startTime": 0, "endTime": 500},
		{"text": "b", "startTime": 400, "endTime": 800}
	]}`)

	_, err := ParseTimeline(doc)
	assert.Error(t, err)
}

func TestParseTimelineRejectsInvertedUnit(t *testing.T) {
	doc := []byte(`{"chars": [{"text": "a", "startTime": 500, "endTime": 100}]}`)

	_, err := ParseTimeline(doc)
	assert.Error(t, err)
}

func TestFindSong(t *testing.T) {
	s, ok := FindSong(DefaultSongID)
	assert.True(t, ok)
	assert.Equal(t, "ストリートライト", s.Title)

	_, ok = FindSong("missing")
	assert.False(t, ok)
}
