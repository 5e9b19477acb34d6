package levels

import "math"

// MaxLevel is the highest reachable level. Users at MaxLevel hold xp == 0
// and further grants only grow their history.
const MaxLevel = 369

const (
	curveBaseXP = 100
	curveScale  = 25
)

// milestoneLevels are levels that warrant special recognition on level-up.
var milestoneLevels = []int{5, 10, 25, 50, 100, 200, 300, MaxLevel}

// XPForNextLevel returns the XP needed to advance from level to level+1.
// The curve is superlinear so late levels cost disproportionately more.
// For level >= MaxLevel there is no next level and math.MaxInt64 is returned.
func XPForNextLevel(level int) int64 {
	if level >= MaxLevel {
		return math.MaxInt64
	}
	if level < 1 {
		level = 1
	}
	l := float64(level)
	return int64(math.Floor(curveBaseXP + math.Pow(l, 2.5)*curveScale*(1+l/100)))
}

// TotalXPForLevel returns the cumulative XP a user spent reaching level
// from level 1. Display only; storage keeps per-level xp.
func TotalXPForLevel(level int) int64 {
	if level > MaxLevel {
		level = MaxLevel
	}
	var total int64
	for i := 1; i < level; i++ {
		total += XPForNextLevel(i)
	}
	return total
}

// ProgressPercent returns how far into the current level xp is, in [0,100].
func ProgressPercent(xp int64, level int) int {
	if xp <= 0 || level >= MaxLevel {
		return 0
	}
	need := XPForNextLevel(level)
	pct := int(math.Floor(float64(xp) / float64(need) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// IsMilestone reports whether level is one of the recognized milestone levels.
func IsMilestone(level int) bool {
	for _, m := range milestoneLevels {
		if m == level {
			return true
		}
		if m > level {
			break
		}
	}
	return false
}
