package guardcode_test

import (
	"strings"
	"testing"
	"time"

	"github.com/cs2central/steam-authenticator-linux/pkg/guardcode"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdefghij") // 20 bytes, fixed for determinism

const codeAlphabet = "23456789BCDFGHJKMNPQRTVWXY"

func TestCodeShape(t *testing.T) {
	t.Parallel()

	at := time.Unix(1700000000, 0)

	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t, guardcode.Code(testSecret, at), guardcode.Code(testSecret, at))
	})

	t.Run("always five symbols from the code alphabet", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			code := guardcode.Code(testSecret, at.Add(time.Duration(i*guardcode.Period)*time.Second))
			require.Len(t, code, guardcode.CodeLength)
			for _, c := range code {
				require.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected symbol %q in %q", c, code)
			}
		}
	})

	t.Run("different secrets yield different codes", func(t *testing.T) {
		other := []byte("jihgfedcba9876543210")
		differ := 0
		for i := 0; i < 100; i++ {
			ts := at.Add(time.Duration(i*guardcode.Period) * time.Second)
			if guardcode.Code(testSecret, ts) != guardcode.Code(other, ts) {
				differ++
			}
		}
		// Collisions are possible but vanishingly rare.
		require.GreaterOrEqual(t, differ, 98)
	})
}

func TestCodeWindowBoundaries(t *testing.T) {
	t.Parallel()

	t.Run("stable within a window", func(t *testing.T) {
		start := time.Unix(1700000010-1700000010%guardcode.Period, 0)
		code := guardcode.Code(testSecret, start)
		require.Equal(t, code, guardcode.Code(testSecret, start.Add(1*time.Second)))
		require.Equal(t, code, guardcode.Code(testSecret, start.Add(29*time.Second)))
		require.Equal(t, code, guardcode.Code(testSecret, start.Add(29*time.Second+999*time.Millisecond)))
	})

	t.Run("changes at the step boundary", func(t *testing.T) {
		// Statistical: adjacent windows share a code only on hash collision.
		start := time.Unix(1700000000-1700000000%guardcode.Period, 0)
		changed := 0
		const windows = 500
		for i := 0; i < windows; i++ {
			ts := start.Add(time.Duration(i*guardcode.Period) * time.Second)
			if guardcode.Code(testSecret, ts) != guardcode.Code(testSecret, ts.Add(guardcode.Period*time.Second)) {
				changed++
			}
		}
		require.GreaterOrEqual(t, changed, windows-2)
	})
}

func TestSecondsRemaining(t *testing.T) {
	t.Parallel()

	windowStart := time.Unix(1700000040, 0) // multiple of 30
	require.Equal(t, 30, guardcode.SecondsRemaining(windowStart))
	require.Equal(t, 29, guardcode.SecondsRemaining(windowStart.Add(1*time.Second)))
	require.Equal(t, 1, guardcode.SecondsRemaining(windowStart.Add(29*time.Second)))
	require.Equal(t, 30, guardcode.SecondsRemaining(windowStart.Add(30*time.Second)))
}

func TestNextWindow(t *testing.T) {
	t.Parallel()

	at := time.Unix(1700000012, 500_000_000)
	next := guardcode.NextWindow(at)
	require.Equal(t, int64(1700000040), next.Unix())
	require.NotEqual(t, guardcode.Code(testSecret, at), guardcode.Code(testSecret, next), "poller must observe the new code once the boundary passes")
}
