package mediaindex

// SampleFormat is the layout of one uncompressed audio sample as stored in the
// container. Multi-channel audio is always interleaved on disk.
type SampleFormat uint8

// Sample formats.
const (
	U8  = SampleFormat(iota + 1) // 8-bit unsigned integer
	S16                          // signed 16-bit integer
	S24                          // signed 24-bit integer, packed
	S32                          // signed 32-bit integer
	FLT                          // 32-bit float
	DBL                          // 64-bit float
)

// BytesPerSample returns the width of one sample of one channel, 0 when
// unknown.
func (sf SampleFormat) BytesPerSample() int {
	switch sf {
	case U8:
		return 1
	case S16:
		return 2 //nolint:mnd
	case S24:
		return 3 //nolint:mnd
	case S32, FLT:
		return 4 //nolint:mnd
	case DBL:
		return 8 //nolint:mnd
	}
	return 0
}

// IsFloat reports whether samples are IEEE floats.
func (sf SampleFormat) IsFloat() bool {
	return sf == FLT || sf == DBL
}

func (sf SampleFormat) String() string {
	switch sf {
	case U8:
		return "U8"
	case S16:
		return "S16"
	case S24:
		return "S24"
	case S32:
		return "S32"
	case FLT:
		return "FLT"
	case DBL:
		return "DBL"
	}
	return "?"
}

// SampleFormatFromBits maps an uncompressed sample width to a format. 8-bit
// integer audio is unsigned, wider integers are signed. Unsupported widths
// yield zero.
func SampleFormatFromBits(bits uint16, float bool) SampleFormat {
	if float {
		switch bits {
		case 32: //nolint:mnd
			return FLT
		case 64: //nolint:mnd
			return DBL
		}
		return 0
	}
	switch bits {
	case 8: //nolint:mnd
		return U8
	case 16: //nolint:mnd
		return S16
	case 24: //nolint:mnd
		return S24
	case 32: //nolint:mnd
		return S32
	}
	return 0
}
