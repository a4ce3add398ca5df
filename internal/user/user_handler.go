package user

import (
	"context"
	"io"
	"time"

	"failboard/config"
	"failboard/internal/gamify"
	"failboard/internal/graph"
	"failboard/internal/models"
	"failboard/internal/notify"

	"gorm.io/gorm"
)

type TokenRevoker interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

type AvatarStore interface {
	UploadImage(ctx context.Context, objectName string, size int64, reader io.Reader, contentType string) (string, error)
}

type StorySource interface {
	Stories() []models.Story
}

// LeaderboardCache holds the rendered leaderboard between recomputations.
type LeaderboardCache interface {
	Load(ctx context.Context, key string) (string, bool, error)
	SetWithRandomTTL(ctx context.Context, key string, value interface{}, baseTTL time.Duration) error
	Del(ctx context.Context, key string) error
}

// Deps groups the collaborators; Tokens, Avatars, Mailer, Points and Cache
// may be nil.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Graph    *graph.Service
	Notifier *notify.Engine
	Stories  StorySource
	Tokens   TokenRevoker
	Avatars  AvatarStore
	Mailer   notify.Mailer
	Points   *gamify.Service
	Cache    LeaderboardCache
}

type UserHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	graph    *graph.Service
	notifier *notify.Engine
	stories  StorySource
	tokens   TokenRevoker
	avatars  AvatarStore
	mailer   notify.Mailer
	points   *gamify.Service
	cache    LeaderboardCache
}

func NewUserHandler(d Deps) *UserHandler {
	return &UserHandler{
		db:       d.DB,
		cfg:      d.Config,
		graph:    d.Graph,
		notifier: d.Notifier,
		stories:  d.Stories,
		tokens:   d.Tokens,
		avatars:  d.Avatars,
		mailer:   d.Mailer,
		points:   d.Points,
		cache:    d.Cache,
	}
}
