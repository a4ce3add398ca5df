// Package graph maintains follow edges, which are stored twice: in the
// follower's following set and in the followee's followers set.
package graph

import (
	"context"
	"errors"
	"fmt"

	"failboard/internal/models"

	"go.uber.org/zap"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Follow adds the edge follower -> followee. Following yourself is a no-op.
//
// With a transactional store both sides commit together. Otherwise the
// follower side is written first and undone if the followee side fails; if
// the undo also fails the graph is left inconsistent and ErrPartialGraphUpdate
// is returned. Reconcile repairs that state.
func (s *Service) Follow(ctx context.Context, followerID, followeeID string) error {
	return s.apply(ctx, followerID, followeeID, add)
}

// Unfollow removes the edge, with the same failure handling as Follow.
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.apply(ctx, followerID, followeeID, remove)
}

func (s *Service) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	p, err := s.store.Get(ctx, followerID)
	if err != nil {
		return false, err
	}
	return contains(p.Following, followeeID), nil
}

func (s *Service) apply(ctx context.Context, followerID, followeeID string, op func([]string, string) []string) error {
	if followerID == "" || followeeID == "" {
		return fmt.Errorf("%w: missing user id", models.ErrValidation)
	}
	if followerID == followeeID {
		return nil
	}

	if tx, ok := s.store.(Transactor); ok {
		return tx.InTx(ctx, func(st Store) error {
			follower, followee, err := load(ctx, st, followerID, followeeID)
			if err != nil {
				return err
			}
			if err := st.SetFollowing(ctx, followerID, op(follower.Following, followeeID)); err != nil {
				return remote(err)
			}
			if err := st.SetFollowers(ctx, followeeID, op(followee.Followers, followerID)); err != nil {
				return remote(err)
			}
			return nil
		})
	}
	return s.saga(ctx, followerID, followeeID, op)
}

func (s *Service) saga(ctx context.Context, followerID, followeeID string, op func([]string, string) []string) error {
	follower, followee, err := load(ctx, s.store, followerID, followeeID)
	if err != nil {
		return err
	}

	prev := append([]string{}, follower.Following...)
	if err := s.store.SetFollowing(ctx, followerID, op(follower.Following, followeeID)); err != nil {
		return remote(err)
	}

	if err := s.store.SetFollowers(ctx, followeeID, op(followee.Followers, followerID)); err != nil {
		if cerr := s.store.SetFollowing(ctx, followerID, prev); cerr != nil {
			zap.L().Error("follow compensation failed",
				zap.String("follower", followerID), zap.String("followee", followeeID),
				zap.Error(err), zap.NamedError("compensation", cerr))
			return fmt.Errorf("%w: %s -> %s: %v", models.ErrPartialGraphUpdate, followerID, followeeID, err)
		}
		return remote(err)
	}
	return nil
}

// Reconcile makes both sides agree for userID, trusting following sets: a
// followee missing userID in its followers gets it added, and a followers
// entry without the matching following entry is dropped. It returns the
// number of repairs.
func (s *Service) Reconcile(ctx context.Context, userID string) (int, error) {
	me, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	repairs := 0

	following := make([]string, 0, len(me.Following))
	for _, fid := range me.Following {
		followee, err := s.store.Get(ctx, fid)
		if errors.Is(err, models.ErrNotFound) {
			repairs++
			continue
		}
		if err != nil {
			return repairs, remote(err)
		}
		following = append(following, fid)
		if !contains(followee.Followers, userID) {
			if err := s.store.SetFollowers(ctx, fid, add(followee.Followers, userID)); err != nil {
				return repairs, remote(err)
			}
			repairs++
		}
	}
	if len(following) != len(me.Following) {
		if err := s.store.SetFollowing(ctx, userID, following); err != nil {
			return repairs, remote(err)
		}
	}

	followers := make([]string, 0, len(me.Followers))
	for _, fid := range me.Followers {
		follower, err := s.store.Get(ctx, fid)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return repairs, remote(err)
		}
		if err == nil && contains(follower.Following, userID) {
			followers = append(followers, fid)
			continue
		}
		repairs++
	}
	if len(followers) != len(me.Followers) {
		if err := s.store.SetFollowers(ctx, userID, followers); err != nil {
			return repairs, remote(err)
		}
	}

	if repairs > 0 {
		zap.L().Info("follow graph repaired", zap.String("user_id", userID), zap.Int("repairs", repairs))
	}
	return repairs, nil
}

// load reads both profiles in id order, so transactions that lock rows on
// read always take the locks in the same order.
func load(ctx context.Context, st Store, followerID, followeeID string) (*models.Profile, *models.Profile, error) {
	first, second := followerID, followeeID
	if second < first {
		first, second = second, first
	}
	a, err := st.Get(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := st.Get(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if first == followerID {
		return a, b, nil
	}
	return b, a, nil
}

func remote(err error) error {
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrRemoteUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
}

func contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func add(set []string, id string) []string {
	if contains(set, id) {
		return append([]string{}, set...)
	}
	return append(append([]string{}, set...), id)
}

func remove(set []string, id string) []string {
	out := make([]string, 0, len(set))
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
