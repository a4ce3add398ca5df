package graph

import (
	"context"
	"errors"
	"fmt"

	"failboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads profiles and writes one side of a follow edge at a time.
type Store interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	SetFollowing(ctx context.Context, id string, following []string) error
	SetFollowers(ctx context.Context, id string, followers []string) error
}

// Transactor is implemented by stores that can write both sides atomically.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

type GormStore struct {
	db *gorm.DB
	// lock is set inside InTx: reads take row locks so concurrent edges on
	// the same profile serialize instead of overwriting each other.
	lock bool
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := s.query(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: profile %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if p.Following == nil {
		p.Following = []string{}
	}
	if p.Followers == nil {
		p.Followers = []string{}
	}
	return &p, nil
}

func (s *GormStore) query(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	if s.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (s *GormStore) SetFollowing(ctx context.Context, id string, following []string) error {
	return s.setColumn(ctx, id, "following", &models.Profile{Following: nonNil(following)})
}

func (s *GormStore) SetFollowers(ctx context.Context, id string, followers []string) error {
	return s.setColumn(ctx, id, "followers", &models.Profile{Followers: nonNil(followers)})
}

func (s *GormStore) setColumn(ctx context.Context, id, column string, values *models.Profile) error {
	// RowsAffected is not checked: MySQL reports 0 when the value is unchanged.
	return s.db.WithContext(ctx).Model(&models.Profile{ID: id}).Select(column).Updates(values).Error
}

func (s *GormStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, lock: true})
	})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
