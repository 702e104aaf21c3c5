package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkerScannerPassThrough(t *testing.T) {
	var s markerScanner
	text, codes := s.scan([]byte("plain output\n"))
	assert.Equal(t, "plain output\n", text)
	assert.Empty(t, codes)
}

func TestMarkerScannerExtractsExitCode(t *testing.T) {
	var s markerScanner
	text, codes := s.scan([]byte("build done\n\x1b]133;D;0\x07$ "))
	assert.Equal(t, "build done\n$ ", text)
	assert.Equal(t, []int{0}, codes)
}

func TestMarkerScannerMultipleMarkers(t *testing.T) {
	var s markerScanner
	text, codes := s.scan([]byte("a\x1b]133;D;1\x07b\x1b]133;D;0\x07c"))
	assert.Equal(t, "abc", text)
	assert.Equal(t, []int{1, 0}, codes)
}

func TestMarkerScannerSplitAcrossChunks(t *testing.T) {
	var s markerScanner

	text, codes := s.scan([]byte("output\x1b]133;D"))
	assert.Equal(t, "output", text)
	assert.Empty(t, codes)

	text, codes = s.scan([]byte(";42\x07rest"))
	assert.Equal(t, "rest", text)
	assert.Equal(t, []int{42}, codes)
}

func TestMarkerScannerPartialEscapeHeldBack(t *testing.T) {
	var s markerScanner

	text, codes := s.scan([]byte("tail\x1b]1"))
	assert.Equal(t, "tail", text)
	assert.Empty(t, codes)

	// Turns out it was not a marker after all; the held-back bytes surface.
	text, codes = s.scan([]byte("33mcolor"))
	assert.Empty(t, codes)
	assert.Equal(t, "\x1b]133mcolor", text)
}

func TestMarkerScannerBadCodeIgnored(t *testing.T) {
	var s markerScanner
	text, codes := s.scan([]byte("x\x1b]133;D;notanumber\x07y"))
	assert.Equal(t, "xy", text)
	assert.Empty(t, codes)
}
