package dnp3

import "github.com/scadaflow/ingestcore/reading"

// MapQuality maps an 8-bit DNP3-style quality/flags byte onto the three-way
// Quality enum:
//
//   - ONLINE set and none of COMM_LOST/REMOTE_FORCED/LOCAL_FORCED set -> Good
//   - COMM_LOST set -> Bad
//   - anything else (including all-zero flags) -> Bad, unless ONLINE is set
//     alongside a forced flag, in which case -> Uncertain
func MapQuality(flags byte) reading.Quality {
	online := flags&FlagOnline != 0
	commLost := flags&flagCommLost != 0
	forced := flags&(flagRemoteForced|flagLocalForced) != 0

	switch {
	case online && !commLost && !forced:
		return reading.QualityGood
	case commLost:
		return reading.QualityBad
	case online && forced:
		return reading.QualityUncertain
	default:
		return reading.QualityBad
	}
}
