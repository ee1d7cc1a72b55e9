package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateNote(t *testing.T) {
	t.Run("short value untouched", func(t *testing.T) {
		assert.Equal(t, "backend unavailable", TruncateNote("backend unavailable"))
	})

	t.Run("long value capped with ellipsis", func(t *testing.T) {
		got := TruncateNote(strings.Repeat("a", MaxNoteLength+100))
		assert.Len(t, got, MaxNoteLength)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("multi-byte input stays valid utf8", func(t *testing.T) {
		got := TruncateNote(strings.Repeat("é", MaxNoteLength+100))
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, MaxNoteLength, utf8.RuneCountInString(got))
		assert.True(t, strings.HasSuffix(got, "..."))
	})
}

func TestAppendNote_RingBuffer(t *testing.T) {
	run := &ScanRun{}
	for i := 0; i < MaxRunNotes+5; i++ {
		run.AppendNote("gmail_metadata_failed", "boom", "msg")
	}

	assert.Len(t, run.Notes, MaxRunNotes)
	assert.Equal(t, MaxRunNotes+5, run.ErrorCount)
}
