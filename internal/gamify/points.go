// Package gamify awards points for activity and derives levels from them.
package gamify

import "time"

type Action string

const (
	ShareStory   Action = "SHARE_STORY"
	ReceiveVote  Action = "RECEIVE_VOTE"
	GiveVote     Action = "GIVE_VOTE"
	WriteComment Action = "WRITE_COMMENT"
	DailyLogin   Action = "DAILY_LOGIN"
)

const StreakBonusPerDay = 2

var Points = map[Action]int{
	ShareStory:   10,
	ReceiveVote:  2,
	GiveVote:     1,
	WriteComment: 3,
	DailyLogin:   5,
}

// levelThresholds[i] is the points needed for level i+2.
var levelThresholds = []int{50, 150, 300, 500, 800, 1200, 1800, 2500, 3500}

var levelTitles = []string{
	"Newcomer", "Learner", "Contributor", "Supporter", "Storyteller",
	"Mentor", "Veteran", "Champion", "Legend", "Master",
}

func CalculateLevel(points int) int {
	level := 1
	for _, t := range levelThresholds {
		if points < t {
			break
		}
		level++
	}
	return level
}

func LevelTitle(level int) string {
	if level < 1 || level > len(levelTitles) {
		return "Unknown"
	}
	return levelTitles[level-1]
}

type Progress struct {
	Points      int    `json:"points"`
	Level       int    `json:"level"`
	Title       string `json:"title"`
	NextLevelAt int    `json:"nextLevelAt,omitempty"`
	Streak      int    `json:"streak"`
}

func ProgressFor(points, streak int) Progress {
	level := CalculateLevel(points)
	p := Progress{Points: points, Level: level, Title: LevelTitle(level), Streak: streak}
	if level-1 < len(levelThresholds) {
		p.NextLevelAt = levelThresholds[level-1]
	}
	return p
}

// NextStreak decides the daily login award. due is false when the user has
// already been credited today. Days are calendar days in UTC.
func NextStreak(lastLogin *time.Time, streak int, now time.Time) (newStreak, points int, due bool) {
	today := now.UTC().Truncate(24 * time.Hour)
	if lastLogin != nil && !lastLogin.UTC().Before(today) {
		return streak, 0, false
	}

	newStreak, bonus := 1, 0
	if lastLogin != nil && !lastLogin.UTC().Before(today.AddDate(0, 0, -1)) {
		newStreak = streak + 1
		bonus = newStreak * StreakBonusPerDay
	}
	return newStreak, Points[DailyLogin] + bonus, true
}
