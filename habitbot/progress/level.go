package progress

import (
	"math"
	"sort"
)

// LevelCalculator maps cumulative XP to a level. Level 1 starts at 0 XP and
// advancing from level N costs floor(base * growth^(N-1)).
type LevelCalculator struct {
	// thresholds[i] is the total XP needed to reach level i+1.
	thresholds []int64
}

func NewLevelCalculator(base int64, growth float64, maxLevel int) *LevelCalculator {
	if base <= 0 {
		base = 100
	}
	if growth < 1 {
		growth = 1
	}
	if maxLevel < 2 {
		maxLevel = 2
	}

	thresholds := make([]int64, maxLevel)
	for n := 1; n < maxLevel; n++ {
		step := int64(math.Floor(float64(base) * math.Pow(growth, float64(n-1))))
		if step < 1 {
			step = 1
		}
		next := thresholds[n-1] + step
		if next < thresholds[n-1] {
			// overflow: cap the curve here
			thresholds = thresholds[:n]
			break
		}
		thresholds[n] = next
	}
	return &LevelCalculator{thresholds: thresholds}
}

// LevelFor is the only way a level is ever derived.
func (c *LevelCalculator) LevelFor(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	// first threshold strictly greater than totalXP
	idx := sort.Search(len(c.thresholds), func(i int) bool {
		return c.thresholds[i] > totalXP
	})
	return idx
}

// XPForLevel returns the cumulative XP at which level starts.
func (c *LevelCalculator) XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > len(c.thresholds) {
		level = len(c.thresholds)
	}
	return c.thresholds[level-1]
}

func (c *LevelCalculator) MaxLevel() int {
	return len(c.thresholds)
}

type LevelProgress struct {
	Level int   `json:"level"`
	Into  int64 `json:"xp_into_level"`
	// Needed is the XP span of the current level; 0 at the max level.
	Needed int64 `json:"xp_for_next_level"`
	NextAt int64 `json:"next_level_at"`
}

func (c *LevelCalculator) Progress(totalXP int64) LevelProgress {
	level := c.LevelFor(totalXP)
	start := c.XPForLevel(level)
	p := LevelProgress{Level: level, Into: totalXP - start}
	if level < c.MaxLevel() {
		p.NextAt = c.XPForLevel(level + 1)
		p.Needed = p.NextAt - start
	}
	return p
}
