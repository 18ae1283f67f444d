package core

// Level identifies one of the three layers of a data lake.
type Level string

// Lake levels, ordered from raw to aggregated.
const (
	LevelBronze Level = "bronze"
	LevelSilver Level = "silver"
	LevelGold   Level = "gold"
)

// Levels returns all valid levels in order.
func Levels() []Level {
	return []Level{LevelBronze, LevelSilver, LevelGold}
}

// ParseLevel validates s and returns the matching Level.
// Matching is exact; "Silver" is not a valid level.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelBronze, LevelSilver, LevelGold:
		return Level(s), nil
	}
	return "", &InvalidLevelError{Level: s}
}

// Valid reports whether l is one of the three lake levels.
func (l Level) Valid() bool {
	_, err := ParseLevel(string(l))
	return err == nil
}

// Rank orders levels: bronze 0, silver 1, gold 2, invalid -1.
func (l Level) Rank() int {
	switch l {
	case LevelBronze:
		return 0
	case LevelSilver:
		return 1
	case LevelGold:
		return 2
	}
	return -1
}

func (l Level) String() string {
	return string(l)
}
