// Package leveling holds the deterministic experience and level math shared
// by the progress engine. All functions are pure so callers can rely on two
// identical experience totals always producing identical levels.
package leveling

// Level thresholds for levels 1 through 10. Past level 10 every additional
// 1000 experience grants one level.
var levelThresholds = []int{0, 100, 300, 600, 1000, 1500, 2100, 2800, 3600, 4500}

// LevelForExperience maps a total experience amount to its level.
func LevelForExperience(totalExperience int) int {
	if totalExperience >= 5500 {
		return 10 + (totalExperience-5500)/1000
	}
	level := 1
	for i, threshold := range levelThresholds {
		if totalExperience >= threshold {
			level = i + 1
		}
	}
	return level
}

// TitleForLevel returns the human-readable band name for a level.
func TitleForLevel(level int) string {
	switch {
	case level <= 2:
		return "Beginner"
	case level <= 5:
		return "Intermediate"
	case level <= 8:
		return "Advanced"
	case level <= 12:
		return "Expert"
	default:
		return "Master"
	}
}

// ExperienceToNextLevel returns the experience required to advance from the
// given level.
func ExperienceToNextLevel(level int) int {
	if level >= 1 && level <= 10 {
		return level * 100
	}
	if level > 10 {
		return 1000 + (level-10)*100
	}
	return 100
}

// ExamExperience computes the experience awarded for completing an exam. An
// exam with no gradable points still grants the base completion award.
func ExamExperience(totalScore, maxScore int) int {
	if maxScore == 0 {
		return 50
	}

	percentage := totalScore * 100 / maxScore
	switch {
	case percentage >= 90:
		return 200
	case percentage >= 80:
		return 150
	case percentage >= 70:
		return 100
	case percentage >= 60:
		return 75
	default:
		return 50
	}
}

// CompletionBonus is the extra experience granted whenever a progress entry
// transitions to completed, on top of the activity's own award. The score
// bands read the raw recorded score, not a percentage.
func CompletionBonus(totalScore *int) int {
	const base = 50

	if totalScore == nil {
		return base
	}

	switch score := *totalScore; {
	case score >= 90 && score <= 100:
		return base + 50
	case score >= 80 && score <= 89:
		return base + 30
	case score >= 70 && score <= 79:
		return base + 20
	default:
		return base + 10
	}
}
