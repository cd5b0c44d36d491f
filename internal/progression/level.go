package progression

import (
	"fmt"

	"github.com/plantpal/plantpal/internal/model"
)

// Fixed experience awards.
const (
	ConversationAward = 10
	CheckInAward      = 20
)

// MaxLevel caps growth. Levels above it are clamped, never stored.
const MaxLevel = 10000

// RequiredExperience is the experience needed to leave level. Out-of-range
// levels are clamped to 1..MaxLevel, so the result never overflows.
func RequiredExperience(level int) int {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return level * 100
}

// PlantTypeForLevel maps a level onto its growth tier.
func PlantTypeForLevel(level int) model.PlantType {
	switch {
	case level <= 3:
		return model.PlantSeedling
	case level <= 7:
		return model.PlantSprout
	case level <= 12:
		return model.PlantSapling
	case level <= 20:
		return model.PlantTree
	default:
		return model.PlantAncientTree
	}
}

// LevelPolicy decides what happens to surplus experience on level-up.
type LevelPolicy int

const (
	// LevelReset zeroes experience on level-up, discarding any surplus.
	LevelReset LevelPolicy = iota
	// LevelCarry keeps the surplus and may cross several levels at once.
	LevelCarry
)

func (p LevelPolicy) String() string {
	switch p {
	case LevelReset:
		return "reset"
	case LevelCarry:
		return "carry"
	}
	return fmt.Sprintf("LevelPolicy(%d)", int(p))
}

// ParseLevelPolicy accepts "reset" or "carry".
func ParseLevelPolicy(s string) (LevelPolicy, error) {
	switch s {
	case "", "reset":
		return LevelReset, nil
	case "carry":
		return LevelCarry, nil
	}
	return LevelReset, fmt.Errorf("unknown level policy %q", s)
}

// levelUp applies the policy in place and reports whether the level changed.
// It runs at most MaxLevel iterations. At MaxLevel experience saturates just
// below the threshold.
func levelUp(s *model.PlantStats, policy LevelPolicy) bool {
	start := s.Level
	if s.Level < 1 {
		s.Level = 1
	}
	if s.Level > MaxLevel {
		s.Level = MaxLevel
	}
	if s.Experience < 0 {
		s.Experience = 0
	}
	for s.Level < MaxLevel && s.Experience >= RequiredExperience(s.Level) {
		need := RequiredExperience(s.Level)
		s.Level++
		if policy == LevelCarry {
			s.Experience -= need
		} else {
			s.Experience = 0
		}
	}
	if s.Level == MaxLevel && s.Experience >= RequiredExperience(MaxLevel) {
		s.Experience = RequiredExperience(MaxLevel) - 1
	}
	s.PlantType = PlantTypeForLevel(s.Level)
	return s.Level > start
}
