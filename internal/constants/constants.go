// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Recognition constants
const (
	// DefaultTolerance is the default maximum embedding distance accepted as a match.
	// Lower values = stricter matching
	DefaultTolerance = 0.4

	// DefaultRequiredMatches is the net number of consecutive matching frames
	// needed before attendance is confirmed
	DefaultRequiredMatches = 5

	// DefaultCompareMaxDim is the maximum dimension of a frame sent for embedding
	// extraction, independent of the preview resolution
	DefaultCompareMaxDim = 640

	// CompareJPEGQuality is the JPEG quality used for frames sent to the embedding server
	CompareJPEGQuality = 90

	// PreviewJPEGQuality is the JPEG quality of frames served to the operator console
	PreviewJPEGQuality = 75
)

// Capture constants
const (
	// DefaultFrameInterval is the kiosk loop tick period
	DefaultFrameInterval = 15 * time.Millisecond

	// DefaultCameraRetryInterval is the first backoff step after the camera fails
	DefaultCameraRetryInterval = 150 * time.Millisecond

	// DefaultCameraRetryMaxInterval caps the camera reacquire backoff
	DefaultCameraRetryMaxInterval = 5 * time.Second
)

// Event constants
const (
	// EventChannelBuffer is the buffer size of each kiosk status listener channel
	EventChannelBuffer = 100
)

// Ledger constants
const (
	// DateLayout is the stored attendance date format
	DateLayout = "2006-01-02"

	// TimeLayout is the stored attendance time-of-day format
	TimeLayout = "15:04:05"
)
