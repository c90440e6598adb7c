//go:build linux

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAffinityCollapsesRuns(t *testing.T) {
	assert.Equal(t, "0,2-4,7", FormatAffinity([]int{7, 2, 3, 4, 0}))
	assert.Equal(t, "", FormatAffinity(nil))
	assert.Equal(t, "5", FormatAffinity([]int{5}))
}

func TestParseAffinityRoundTripsSimpleList(t *testing.T) {
	cpus, err := ParseAffinity("0,5,7,9-11")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5, 7, 9, 10, 11}, cpus)
	assert.Equal(t, "0,5,7,9-11", FormatAffinity(cpus))
}

func TestParseAffinityStride(t *testing.T) {
	cpus, err := ParseAffinity("0-10:2")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4, 6, 8, 10}, cpus)
}

func TestParseAffinityEmptyIsEmpty(t *testing.T) {
	cpus, err := ParseAffinity("")
	require.NoError(t, err)
	assert.Nil(t, cpus)
}

func TestParseAffinityRejectsInvertedRange(t *testing.T) {
	_, err := ParseAffinity("10-5")
	require.Error(t, err)
}

func TestParseAffinityRejectsGarbage(t *testing.T) {
	_, err := ParseAffinity("not-a-cpu-list")
	require.Error(t, err)
}

func TestFormatThenParseRoundTrips(t *testing.T) {
	in := []int{0, 1, 2, 5, 9, 10}
	str := FormatAffinity(in)
	out, err := ParseAffinity(str)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
