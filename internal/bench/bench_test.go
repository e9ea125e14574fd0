package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClampPositiveKeepsPositiveValues(t *testing.T) {
	require.Equal(t, 7, ClampPositive(7, 4))
}

func TestClampPositiveFallsBackOnNonPositive(t *testing.T) {
	require.Equal(t, 4, ClampPositive(0, 4))
	require.Equal(t, 4, ClampPositive(-3, 4))
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "1.500ms", FormatDuration(1500*time.Microsecond))
}
