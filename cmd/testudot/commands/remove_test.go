package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClosestEmail(t *testing.T) {
	known := []string{"alice@umd.edu", "bob@terpmail.umd.edu"}

	require.Equal(t, "alice@umd.edu", closestEmail("alcie@umd.edu", known))
	require.Equal(t, "bob@terpmail.umd.edu", closestEmail(" BOB@terpmail.umd.edu ", known))
	require.Empty(t, closestEmail("zzz", known))
	require.Empty(t, closestEmail("alice@umd.edu", nil))
}

func TestSplitCourses(t *testing.T) {
	require.Equal(t, []string{"CMSC351", "MATH240"}, splitCourses(" CMSC351, ,MATH240,"))
	require.Equal(t, []string{"CMSC351", "MATH240"}, splitCourses("cmsc351,Math240"))
	require.Empty(t, splitCourses(""))
}
