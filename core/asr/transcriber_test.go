package asr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentTimeline(t *testing.T) {
	segments := SegmentTimeline(12.5)
	require.Len(t, segments, 3)

	assert.Equal(t, 0.0, segments[0].Start)
	assert.Equal(t, 5.0, segments[0].End)
	assert.Equal(t, 5.0, segments[1].Start)
	assert.Equal(t, 10.0, segments[1].End)
	assert.Equal(t, 10.0, segments[2].Start)
	assert.Equal(t, 12.5, segments[2].End)

	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
		assert.NotEmpty(t, seg.Text)
	}
}

func TestSegmentTimelineShortClip(t *testing.T) {
	segments := SegmentTimeline(1.2)
	require.Len(t, segments, 1)
	assert.Equal(t, 1.2, segments[0].End)
}

func TestSegmentTimelineZero(t *testing.T) {
	assert.Empty(t, SegmentTimeline(0))
}
