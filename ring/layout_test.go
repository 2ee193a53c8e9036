package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validLayout(bufSize, extraSize uint32) Layout {
	total := 64 + bufSize + extraSize
	return Layout{
		Shared:       make([]byte, total),
		HeadOffset:   0,
		TailOffset:   4,
		StatusOffset: 8,
		BufferOffset: 64,
		BufferSize:   bufSize,
		ExtraOffset:  64 + bufSize,
		ExtraSize:    extraSize,
	}
}

func TestLayoutValidateAcceptsPowerOfTwoBuffer(t *testing.T) {
	require.NoError(t, validLayout(16, 32).validate())
}

func TestLayoutValidateRejectsNonPowerOfTwoBuffer(t *testing.T) {
	l := validLayout(16, 32)
	l.BufferSize = 12
	require.Error(t, l.validate())
}

func TestLayoutValidateRejectsOverlappingRegions(t *testing.T) {
	l := validLayout(16, 32)
	l.StatusOffset = l.TailOffset // collides with tail word
	require.Error(t, l.validate())
}

func TestLayoutValidateRejectsOutOfBoundsRegion(t *testing.T) {
	l := validLayout(16, 32)
	l.Shared = l.Shared[:len(l.Shared)-1]
	require.Error(t, l.validate())
}
