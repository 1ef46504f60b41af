package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitByRunes(t *testing.T) {
	t.Run("empty input returns nil", func(t *testing.T) {
		assert.Nil(t, splitByRunes("   ", 10, 2))
	})

	t.Run("short input returns single chunk", func(t *testing.T) {
		got := splitByRunes("short text", 100, 10)
		assert.Equal(t, []string{"short text"}, got)
	})

	t.Run("non-positive max returns whole text", func(t *testing.T) {
		got := splitByRunes("some text", 0, 0)
		assert.Equal(t, []string{"some text"}, got)
	})

	t.Run("splits with overlap", func(t *testing.T) {
		text := strings.Repeat("abcdefghij", 10) // 100 runes
		got := splitByRunes(text, 40, 10)

		require.NotEmpty(t, got)
		// step = 30: starts at 0, 30, 60, 90
		assert.Len(t, got, 4)
		for i, chunk := range got {
			assert.LessOrEqual(t, len([]rune(chunk)), 40, "chunk %d too long", i)
		}
		// 相邻块共享重叠区
		assert.Equal(t, got[0][30:40], got[1][:10])
	})

	t.Run("overlap ge max does not loop forever", func(t *testing.T) {
		text := strings.Repeat("x", 50)
		got := splitByRunes(text, 10, 10)
		assert.Len(t, got, 5)
	})

	t.Run("multibyte runes are not split mid-character", func(t *testing.T) {
		text := strings.Repeat("清洁验证", 20) // 80 runes
		got := splitByRunes(text, 30, 5)
		for _, chunk := range got {
			assert.True(t, strings.ContainsAny(chunk, "清洁验证"))
			for _, r := range chunk {
				assert.NotEqual(t, '�', r)
			}
		}
	})
}
