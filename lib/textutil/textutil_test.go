package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	require.Equal(t, 5.5, ParseDuration("5.5 hours", 0))
	require.Equal(t, 2.5, ParseDuration("2h 30m", 0))
	require.Equal(t, 10.0, ParseDuration("10 hrs", 0))
	require.Equal(t, 3.0, ParseDuration("3h", 0))
	require.Equal(t, 7.0, ParseDuration("7", 0))
	require.Equal(t, 0.0, ParseDuration("self paced", 0))
}

func TestParseRating(t *testing.T) {
	require.Equal(t, 4.5, ParseRating("4.5 stars", 0))
	require.Equal(t, 4.0, ParseRating("rated 4 out of 5", 0))
	require.Equal(t, 0.0, ParseRating("unrated", 0))
}

func TestParseStudents(t *testing.T) {
	require.Equal(t, 1234, ParseStudents("1,234 students", 0))
	require.Equal(t, 987, ParseStudents("987", 0))
	require.Equal(t, 0, ParseStudents("none yet", 0))
}

func TestFold(t *testing.T) {
	require.Equal(t, "python bootcamp", Fold("Python Bootcamp", false))
	require.Equal(t, "Python Bootcamp", Fold("Python Bootcamp", true))
}
