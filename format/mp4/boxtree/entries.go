package boxtree

import mp4 "github.com/abema/go-mp4"

// Sample entry types found in QuickTime files that the box library does not
// know about. Their layout is the plain audio or visual sample entry.
var (
	quickTimeAudio = []string{"sowt", "twos", "lpcm", "raw ", "in24", "in32", "fl32", "fl64", "ulaw", "alaw", ".mp3", "ima4", "MAC3", "MAC6"}
	quickTimeVideo = []string{"avc3", "jpeg", "mjpa"}
)

func init() { //nolint:gochecknoinits
	for _, s := range quickTimeAudio {
		mp4.AddAnyTypeBoxDef(&mp4.AudioSampleEntry{}, mp4.StrToBoxType(s))
	}
	for _, s := range quickTimeVideo {
		mp4.AddAnyTypeBoxDef(&mp4.VisualSampleEntry{}, mp4.StrToBoxType(s))
	}
}
