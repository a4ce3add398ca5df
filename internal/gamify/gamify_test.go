package gamify

import (
	"context"
	"testing"
	"time"

	"failboard/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		points int
		level  int
		title  string
	}{
		{0, 1, "Newcomer"},
		{49, 1, "Newcomer"},
		{50, 2, "Learner"},
		{299, 3, "Contributor"},
		{300, 4, "Supporter"},
		{800, 6, "Mentor"},
		{3499, 9, "Legend"},
		{3500, 10, "Master"},
		{99999, 10, "Master"},
	}
	for _, tt := range tests {
		level := CalculateLevel(tt.points)
		if level != tt.level || LevelTitle(level) != tt.title {
			t.Errorf("%d points: want %d %s, got %d %s", tt.points, tt.level, tt.title, level, LevelTitle(level))
		}
	}
	if got := ProgressFor(3600, 0).NextLevelAt; got != 0 {
		t.Errorf("want no next level at max, got %d", got)
	}
	if got := ProgressFor(60, 0).NextLevelAt; got != 150 {
		t.Errorf("want next level at 150, got %d", got)
	}
}

func TestNextStreak(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	tests := []struct {
		name       string
		last       *time.Time
		streak     int
		wantStreak int
		wantPoints int
		wantDue    bool
	}{
		{"first login", nil, 0, 1, 5, true},
		{"already today", at(-2 * time.Hour), 3, 3, 0, false},
		{"yesterday continues", at(-20 * time.Hour), 3, 4, 5 + 8, true},
		{"gap resets", at(-72 * time.Hour), 9, 1, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			streak, pts, due := NextStreak(tt.last, tt.streak, now)
			if streak != tt.wantStreak || pts != tt.wantPoints || due != tt.wantDue {
				t.Errorf("want (%d, %d, %v), got (%d, %d, %v)", tt.wantStreak, tt.wantPoints, tt.wantDue, streak, pts, due)
			}
		})
	}
}

func TestService(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	db.AutoMigrate(&models.Profile{})
	db.Create(&models.Profile{ID: "u1", Email: "u1@example.com"})

	ctx := context.Background()
	svc := NewService(db)
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC) }

	for _, a := range []Action{ShareStory, ReceiveVote, ReceiveVote, WriteComment} {
		if err := svc.Record(ctx, "u1", a); err != nil {
			t.Fatal(err)
		}
	}
	var p models.Profile
	db.First(&p, "id = ?", "u1")
	if p.Points != 17 || p.StoryCount != 1 || p.VotesReceived != 2 || p.CommentsWritten != 1 {
		t.Errorf("unexpected profile counters %+v", p)
	}

	prog, err := svc.CheckDailyLogin(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if prog.Points != 22 || prog.Streak != 1 {
		t.Errorf("want 22 points streak 1, got %+v", prog)
	}
	prog, _ = svc.CheckDailyLogin(ctx, "u1")
	if prog.Points != 22 {
		t.Errorf("want no second award on the same day, got %+v", prog)
	}
}
