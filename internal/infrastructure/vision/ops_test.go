package vision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGoCVOps_MatchesBuild(t *testing.T) {
	ops, err := NewGoCVOps()
	if Available {
		require.NoError(t, err)
		require.Equal(t, "gocv", ops.Name())
		return
	}
	require.Error(t, err)
	require.Nil(t, ops)
}
