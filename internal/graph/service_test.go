package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"failboard/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memStore is a non-transactional store with switchable write failures.
type memStore struct {
	profiles       map[string]*models.Profile
	failFollowing  int // fail the nth SetFollowing call (1-based), 0 = never
	failFollowers  bool
	followingCalls int
}

func newMemStore(ids ...string) *memStore {
	m := &memStore{profiles: map[string]*models.Profile{}}
	for _, id := range ids {
		m.profiles[id] = &models.Profile{ID: id, Following: []string{}, Followers: []string{}}
	}
	return m
}

func (m *memStore) Get(_ context.Context, id string) (*models.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	cp.Following = append([]string{}, p.Following...)
	cp.Followers = append([]string{}, p.Followers...)
	return &cp, nil
}

func (m *memStore) SetFollowing(_ context.Context, id string, ids []string) error {
	m.followingCalls++
	if m.failFollowing == m.followingCalls {
		return errors.New("write timeout")
	}
	m.profiles[id].Following = append([]string{}, ids...)
	return nil
}

func (m *memStore) SetFollowers(_ context.Context, id string, ids []string) error {
	if m.failFollowers {
		return errors.New("write timeout")
	}
	m.profiles[id].Followers = append([]string{}, ids...)
	return nil
}

func TestFollowUnfollow_Symmetric(t *testing.T) {
	ctx := context.Background()
	st := newMemStore("A", "B")
	svc := NewService(st)

	if err := svc.Follow(ctx, "A", "B"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.IsFollowing(ctx, "A", "B"); !ok {
		t.Error("want A following B")
	}
	if !reflect.DeepEqual(st.profiles["B"].Followers, []string{"A"}) {
		t.Errorf("want B.followers [A], got %v", st.profiles["B"].Followers)
	}

	if err := svc.Unfollow(ctx, "A", "B"); err != nil {
		t.Fatal(err)
	}
	if len(st.profiles["A"].Following) != 0 || len(st.profiles["B"].Followers) != 0 {
		t.Errorf("want both sides empty, got following=%v followers=%v",
			st.profiles["A"].Following, st.profiles["B"].Followers)
	}
}

func TestFollow_SelfAndDuplicate(t *testing.T) {
	ctx := context.Background()
	st := newMemStore("A", "B")
	svc := NewService(st)

	if err := svc.Follow(ctx, "A", "A"); err != nil {
		t.Fatal(err)
	}
	if len(st.profiles["A"].Following) != 0 || st.followingCalls != 0 {
		t.Error("self follow must not write")
	}

	svc.Follow(ctx, "A", "B")
	svc.Follow(ctx, "A", "B")
	if !reflect.DeepEqual(st.profiles["A"].Following, []string{"B"}) {
		t.Errorf("want a single edge, got %v", st.profiles["A"].Following)
	}

	if err := svc.Follow(ctx, "A", "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestFollow_CompensatesSecondSideFailure(t *testing.T) {
	ctx := context.Background()
	st := newMemStore("A", "B")
	st.failFollowers = true
	svc := NewService(st)

	err := svc.Follow(ctx, "A", "B")
	if !errors.Is(err, models.ErrRemoteUnavailable) {
		t.Fatalf("want ErrRemoteUnavailable, got %v", err)
	}
	if len(st.profiles["A"].Following) != 0 {
		t.Errorf("want follower side rolled back, got %v", st.profiles["A"].Following)
	}
}

func TestFollow_PartialGraphUpdate(t *testing.T) {
	ctx := context.Background()
	st := newMemStore("A", "B")
	st.failFollowers = true
	st.failFollowing = 2 // the compensating write
	svc := NewService(st)

	err := svc.Follow(ctx, "A", "B")
	if !errors.Is(err, models.ErrPartialGraphUpdate) {
		t.Fatalf("want ErrPartialGraphUpdate, got %v", err)
	}
	if !reflect.DeepEqual(st.profiles["A"].Following, []string{"B"}) || len(st.profiles["B"].Followers) != 0 {
		t.Fatalf("expected the half-written edge, got following=%v followers=%v",
			st.profiles["A"].Following, st.profiles["B"].Followers)
	}

	st.failFollowers = false
	n, err := svc.Reconcile(ctx, "A")
	if err != nil || n != 1 {
		t.Fatalf("want 1 repair, got %d err=%v", n, err)
	}
	if !reflect.DeepEqual(st.profiles["B"].Followers, []string{"A"}) {
		t.Errorf("want B.followers repaired to [A], got %v", st.profiles["B"].Followers)
	}

	if n, _ := svc.Reconcile(ctx, "A"); n != 0 {
		t.Errorf("want consistent graph on second pass, got %d repairs", n)
	}
}

func TestReconcile_DropsOrphanFollowers(t *testing.T) {
	ctx := context.Background()
	st := newMemStore("A", "B", "C")
	st.profiles["A"].Followers = []string{"B", "C", "gone"}
	st.profiles["B"].Following = []string{"A"}
	st.profiles["A"].Following = []string{"deleted-user"}
	svc := NewService(st)

	n, err := svc.Reconcile(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("want 3 repairs, got %d", n)
	}
	if !reflect.DeepEqual(st.profiles["A"].Followers, []string{"B"}) {
		t.Errorf("want followers [B], got %v", st.profiles["A"].Followers)
	}
	if len(st.profiles["A"].Following) != 0 {
		t.Errorf("want dangling following dropped, got %v", st.profiles["A"].Following)
	}
}

func TestGormStore_Transactional(t *testing.T) {
	db := openProfileDB(t, "A", "B")

	ctx := context.Background()
	svc := NewService(NewGormStore(db))
	if err := svc.Follow(ctx, "A", "B"); err != nil {
		t.Fatal(err)
	}

	var a, b models.Profile
	db.First(&a, "id = ?", "A")
	db.First(&b, "id = ?", "B")
	if !reflect.DeepEqual(a.Following, []string{"B"}) || !reflect.DeepEqual(b.Followers, []string{"A"}) {
		t.Fatalf("want edge on both sides, got %v / %v", a.Following, b.Followers)
	}

	if err := svc.Follow(ctx, "A", "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}

	if err := svc.Unfollow(ctx, "A", "B"); err != nil {
		t.Fatal(err)
	}
	a, b = models.Profile{}, models.Profile{}
	db.First(&a, "id = ?", "A")
	db.First(&b, "id = ?", "B")
	if len(a.Following) != 0 || len(b.Followers) != 0 {
		t.Errorf("want both sides cleared, got %v / %v", a.Following, b.Followers)
	}
}

func openProfileDB(t *testing.T, ids ...string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.Profile{}); err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		db.Create(&models.Profile{ID: id, Email: id + "@example.com", Following: []string{}, Followers: []string{}})
	}
	return db
}

func TestGormStore_LocksRowsInTx(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "failboard:secret@tcp(127.0.0.1:3306)/failboard?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	var stmts []string
	db.Callback().Query().After("gorm:query").Register("test:capture_sql", func(tx *gorm.DB) {
		stmts = append(stmts, tx.Statement.SQL.String())
	})

	ctx := context.Background()
	if _, err := (&GormStore{db: db}).Get(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := (&GormStore{db: db, lock: true}).Get(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 2 {
		t.Fatalf("want 2 queries, got %d", len(stmts))
	}
	if strings.Contains(stmts[0], "FOR UPDATE") {
		t.Errorf("want plain read outside a transaction, got %q", stmts[0])
	}
	if !strings.Contains(stmts[1], "FOR UPDATE") {
		t.Errorf("want locking read, got %q", stmts[1])
	}

	var locked bool
	err = NewGormStore(openProfileDB(t, "A")).InTx(ctx, func(st Store) error {
		locked = st.(*GormStore).lock
		return nil
	})
	if err != nil || !locked {
		t.Errorf("want InTx to hand out a locking store, got lock=%v err=%v", locked, err)
	}
}

func TestGormStore_ConcurrentFollowsKeepEveryEdge(t *testing.T) {
	followers := []string{"A", "B", "D", "E", "F"}
	db := openProfileDB(t, append([]string{"C"}, followers...)...)
	svc := NewService(NewGormStore(db))

	var wg sync.WaitGroup
	errs := make(chan error, len(followers))
	for _, id := range followers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := svc.Follow(context.Background(), id, "C"); err != nil {
				errs <- fmt.Errorf("%s: %w", id, err)
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	var c models.Profile
	db.First(&c, "id = ?", "C")
	got := append([]string{}, c.Followers...)
	sort.Strings(got)
	if !reflect.DeepEqual(got, followers) {
		t.Errorf("want followers %v, got %v", followers, got)
	}
	for _, id := range followers {
		var p models.Profile
		db.First(&p, "id = ?", id)
		if !reflect.DeepEqual(p.Following, []string{"C"}) {
			t.Errorf("%s: want following [C], got %v", id, p.Following)
		}
	}
}

func TestLoad_ReturnsProfilesInCallerOrder(t *testing.T) {
	st := newMemStore("a", "z")
	follower, followee, err := load(context.Background(), st, "z", "a")
	if err != nil {
		t.Fatal(err)
	}
	if follower.ID != "z" || followee.ID != "a" {
		t.Errorf("want z then a, got %s then %s", follower.ID, followee.ID)
	}
}
