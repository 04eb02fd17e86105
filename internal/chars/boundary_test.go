package chars

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloorBoundaryNeverSplitsARune(t *testing.T) {
	s := "🙂 hello 🌍"
	for i := 0; i <= len(s); i++ {
		b := FloorBoundary(s, i)
		require.True(t, b == len(s) || utf8.RuneStart(s[b]), "boundary %d not a rune start", b)
	}
}

func TestNextChunkEndReconstructsOriginal(t *testing.T) {
	cases := []string{
		"🙂 hello 🌍",
		"plain ascii text here",
		"combining é and é again",
		"no break space",
		"thin space here",
		"💡",
	}

	for _, s := range cases {
		var out string
		p := 0
		for p < len(s) {
			end := NextChunkEnd(s, p, 4, 8)
			require.Greater(t, end, p, "chunker must make progress on %q", s)
			chunk := s[p:end]
			require.True(t, utf8.ValidString(chunk), "chunk %q not valid utf8", chunk)
			out += chunk
			p = end
		}
		assert.Equal(t, s, out)
	}
}

func TestNextChunkEndNoPanicOnEmpty(t *testing.T) {
	assert.Equal(t, 0, NextChunkEnd("", 0, 4, 8))
}
