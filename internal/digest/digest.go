package digest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"failboard/internal/feed"
	"failboard/internal/infra/mail"
	"failboard/internal/models"
	"failboard/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	TopStoryCount  = 5
	Window         = 7 * 24 * time.Hour
	maxConcurrency = 8
	excerptLength  = 100
)

type StorySource interface {
	Stories() []models.Story
}

type Result struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

type Runner struct {
	db      *gorm.DB
	stories StorySource
	sender  mail.Sender
	now     func() time.Time
}

func NewRunner(db *gorm.DB, stories StorySource, sender mail.Sender) *Runner {
	return &Runner{db: db, stories: stories, sender: sender, now: time.Now}
}

// Vars builds the digest template variables for the week ending now.
func (r *Runner) Vars(ctx context.Context) (map[string]any, error) {
	since := r.now().Add(-Window)

	var recent []models.Story
	for _, s := range r.stories.Stories() {
		if !s.CreatedAt.Before(since) {
			recent = append(recent, s)
		}
	}
	stats := feed.CommunityStats(recent, since)

	var newUsers int64
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("created_at >= ?", since).Count(&newUsers).Error; err != nil {
		return nil, fmt.Errorf("%w: count new users: %v", models.ErrRemoteUnavailable, err)
	}

	top := feed.TopStories(recent, TopStoryCount)
	items := make([]map[string]any, 0, len(top))
	for _, s := range top {
		items = append(items, map[string]any{
			"author": s.Author,
			"text":   utils.Truncate(s.Text, excerptLength),
			"votes":  s.Votes,
		})
	}

	return map[string]any{
		"stories":    items,
		"newStories": stats.NewStories,
		"totalVotes": stats.TotalVotes,
		"newUsers":   newUsers,
	}, nil
}

// Run sends the digest to recipients, or to every opted-in profile when the
// list is empty.
func (r *Runner) Run(ctx context.Context, recipients []string) (Result, error) {
	vars, err := r.Vars(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	addresses, skipped, err := r.audience(ctx, recipients)
	if err != nil {
		return Result{}, err
	}
	res.Skipped = skipped

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for _, to := range addresses {
		to := to
		g.Go(func() error {
			if err := r.sender.Send(gctx, models.TemplateDigest, to, vars); err != nil {
				zap.L().Warn("digest delivery failed", zap.String("to", to), zap.Error(err))
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Sent = sent.Load()
	res.Failed = failed.Load()
	zap.L().Info("digest run finished",
		zap.Int64("sent", res.Sent), zap.Int64("failed", res.Failed), zap.Int64("skipped", res.Skipped))
	return res, nil
}

func (r *Runner) audience(ctx context.Context, recipients []string) ([]string, int64, error) {
	var skipped int64
	seen := make(map[string]bool)
	var out []string

	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			skipped++
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}

	if len(recipients) > 0 {
		for _, addr := range recipients {
			add(addr)
		}
		return out, skipped, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Select("id", "email", "digest_emails", "is_banned").
		Find(&profiles).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: load profiles: %v", models.ErrRemoteUnavailable, err)
	}
	for _, p := range profiles {
		if !p.DigestEmails || p.IsBanned {
			skipped++
			continue
		}
		add(p.Email)
	}
	return out, skipped, nil
}
