package utils

import "fmt"

// UnknownTrackError represents an error indicating that a container has no track with the requested id.
type UnknownTrackError struct {
	ID uint32
}

// Error returns the error message for UnknownTrackError.
func (e *UnknownTrackError) Error() string {
	return fmt.Sprintf("unknown track %d", e.ID)
}

// NoTracksError represents an error indicating that no readable track is left in a container.
type NoTracksError struct {
}

// Error returns the error message for NoTracksError.
func (NoTracksError) Error() string {
	return "No tracks available"
}

// NotDemuxedError represents an error indicating that the demuxer was used before Demux succeeded.
type NotDemuxedError struct {
}

// Error returns the error message for NotDemuxedError.
func (NotDemuxedError) Error() string {
	return "Not demuxed"
}
