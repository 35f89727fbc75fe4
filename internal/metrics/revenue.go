package metrics

import "regexp"

var whitespaceDotRe = regexp.MustCompile(`[\s.]+`)

// rpmBucket is one entry of the base-RPM-by-duration table (spec §4.5).
type rpmBucket struct {
	minMinutes float64
	maxMinutes float64 // 0 means unbounded
	rpm        float64
}

var rpmTable = []rpmBucket{
	{0, 20, 3.5},
	{20, 45, 5.0},
	{45, 90, 6.5},
	{90, 180, 14.5},
	{180, 0, 23.5},
}

const defaultRPM = 3.5

// baseRPM returns the base RPM for a video-length bucket, keyed on
// average video duration in minutes (spec §4.5 "base RPM by
// video-length bucket"), ported from
// original_source/dashboard/routes.py's get_base_rpm.
func baseRPM(avgDurationMinutes float64) float64 {
	for _, b := range rpmTable {
		if b.maxMinutes == 0 {
			if avgDurationMinutes >= b.minMinutes {
				return b.rpm
			}
			continue
		}
		if avgDurationMinutes >= b.minMinutes && avgDurationMinutes < b.maxMinutes {
			return b.rpm
		}
	}
	return defaultRPM
}

const defaultNicheMultiplier = 0.8

// nicheMultipliers is the 59-entry table of niche -> RPM multiplier,
// ported from original_source/dashboard/routes.py's get_niche_multiplier
// (spec §4.5); a niche matching no entry gets defaultNicheMultiplier.
var nicheMultipliers = map[string]float64{
	"finance":              1.29,
	"technology":           1.04,
	"education":            0.92,
	"entertainment":        0.77,
	"lifestyle":            0.82,
	"marketing":            1.18,
	"crypto":               1.49,
	"real estate":          1.82,
	"investing":            1.08,
	"side hustle":          1.19,
	"entrepreneurship":     1.63,
	"personal finance":     1.29,
	"business":             0.95,
	"vlogging":             1.03,
	"dropshipping":         5.18,
	"affiliate marketing":  0.87,
	"print on demand":      0.78,
	"filmmaking":           0.9,
	"travel":               0.85,
	"hustling":             1.15,
	"digital products":     1.2,
	"motherhood":           0.95,
	"archery":              0.8,
	"hunting":              0.85,
	"productivity":         1.05,
	"personal development": 1.1,
	"science":              0.95,
	"space":                1.0,
	"geology":              0.9,
	"paleontology":         0.85,
	"astronomy":            1.05,
	"history":              0.9,
	"politics":             1.1,
	"news":                 1.2,
	"gaming":               0.8,
	"sports":               0.9,
	"fitness":              1.0,
	"cooking":              0.85,
	"fashion":              0.95,
	"beauty":               1.0,
	"diy":                  0.9,
	"home improvement":     1.05,
	"gardening":            0.85,
	"pets":                 0.9,
	"music":                0.8,
	"art":                  0.85,
	"photography":          0.95,
	"writing":              0.9,
	"language learning":    1.0,
	"food":                 0.9,
	"wine":                 1.1,
	"beer":                 0.95,
	"spirits":              1.05,
	"automotive":           1.1,
	"motorcycles":          1.0,
	"boats":                1.15,
	"aviation":             1.2,
	"outdoors":             0.9,
	"survival":             1.05,
}

// nicheMultiplier looks up the multiplier for niche, matching the
// original's "first key contained in niche, case-insensitive" rule, and
// falling back to defaultNicheMultiplier.
func nicheMultiplier(niche string) float64 {
	lower := lowerASCII(niche)
	for key, mult := range nicheMultipliers {
		if containsSubstr(lower, key) {
			return mult
		}
	}
	return defaultNicheMultiplier
}

// EstimateMonthlyRevenue is the pure revenue estimator used by the
// discovery UI (spec §4.5 "Revenue estimate"): base RPM by video-length
// bucket times niche multiplier, applied to the channel's monthly views.
// No network call; a pure function of already-stored stats.
func EstimateMonthlyRevenue(monthlyViews, avgVideoDurationSec float64, niche string) float64 {
	rpm := baseRPM(avgVideoDurationSec/60) * nicheMultiplier(niche)
	return (monthlyViews / 1000) * rpm
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func containsSubstr(s, sub string) bool {
	if len(sub) == 0 || len(sub) > len(s) {
		return sub == ""
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
