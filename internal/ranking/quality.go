package ranking

import "github.com/kozaktomas/fuzzysearch/internal/constants"

// Quality is a human readable label derived purely from distance.
type Quality int

// Quality levels, best first.
const (
	QualityPerfect Quality = iota
	QualityGood
	QualityUnlikely
)

// MatchQuality labels a distance. The cutoffs are independent of the bucket
// threshold used by Rank.
func MatchQuality(distance uint64) Quality {
	switch {
	case distance == constants.PerfectMatchDistance:
		return QualityPerfect
	case distance < constants.GoodMatchCutoff:
		return QualityGood
	default:
		return QualityUnlikely
	}
}

func (q Quality) String() string {
	switch q {
	case QualityPerfect:
		return "perfect match"
	case QualityGood:
		return "good match"
	default:
		return "unlikely match"
	}
}

// MarshalText encodes the label for JSON output.
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}
