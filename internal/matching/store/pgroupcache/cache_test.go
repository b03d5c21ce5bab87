package pgroupcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"donormatch/internal/matching/ports/mocks"
)

// fakeClient keeps one hash in memory, or fails every call when err is set.
type fakeClient struct {
	hash    map[string]string
	expires []time.Duration
	err     error
	reads   int
}

func (f *fakeClient) HMGet(_ context.Context, _ string, fields ...string) *redis.SliceCmd {
	f.reads++
	if f.err != nil {
		return redis.NewSliceResult(nil, f.err)
	}
	values := make([]interface{}, len(fields))
	for i, field := range fields {
		if v, ok := f.hash[field]; ok {
			values[i] = v
		}
	}
	return redis.NewSliceResult(values, nil)
}

func (f *fakeClient) HSet(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.hash[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeClient) Expire(_ context.Context, _ string, ttl time.Duration) *redis.BoolCmd {
	f.expires = append(f.expires, ttl)
	return redis.NewBoolResult(true, f.err)
}

type CacheSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	backing *mocks.MockPGroupRepository
	client  *fakeClient
	cache   *Cache
	ctx     context.Context
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backing = mocks.NewMockPGroupRepository(s.ctrl)
	s.client = &fakeClient{hash: map[string]string{}}
	s.ctx = context.Background()

	var err error
	s.cache, err = New(s.client, s.backing,
		WithTTL(time.Hour),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
}

func (s *CacheSuite) TestNew() {
	_, err := New(nil, s.backing)
	s.ErrorContains(err, "redis client is required")

	_, err = New(s.client, nil)
	s.ErrorContains(err, "backing pgroup repository is required")
}

func (s *CacheSuite) TestReadThrough() {
	s.Run("misses load from the backing repository and are cached", func() {
		s.backing.EXPECT().GetPGroupIDs(gomock.Any(), []string{"A*01", "A*02"}).
			Return(map[string]int{"A*01": 1}, nil)

		ids, err := s.cache.GetPGroupIDs(s.ctx, []string{"A*01", "A*02"})
		s.Require().NoError(err)
		s.Equal(map[string]int{"A*01": 1}, ids)
		s.Equal(map[string]string{"A*01": "1"}, s.client.hash)
		s.Equal([]time.Duration{time.Hour}, s.client.expires)
	})

	s.Run("hits skip the backing repository and unknown names are retried", func() {
		s.backing.EXPECT().GetPGroupIDs(gomock.Any(), []string{"A*02"}).
			Return(map[string]int{}, nil)

		ids, err := s.cache.GetPGroupIDs(s.ctx, []string{"A*01", "A*02"})
		s.Require().NoError(err)
		s.Equal(map[string]int{"A*01": 1}, ids)
	})

	s.Run("full hit makes no backing call", func() {
		ids, err := s.cache.GetPGroupIDs(s.ctx, []string{"A*01"})
		s.Require().NoError(err)
		s.Equal(map[string]int{"A*01": 1}, ids)
	})

	s.Run("empty input", func() {
		ids, err := s.cache.GetPGroupIDs(s.ctx, nil)
		s.Require().NoError(err)
		s.Empty(ids)
	})
}

func (s *CacheSuite) TestRedisFailureFallsBack() {
	s.client.err = errors.New("connection refused")
	s.backing.EXPECT().GetPGroupIDs(gomock.Any(), []string{"B*07"}).
		Return(map[string]int{"B*07": 7}, nil)

	ids, err := s.cache.GetPGroupIDs(s.ctx, []string{"B*07"})
	s.Require().NoError(err)
	s.Equal(map[string]int{"B*07": 7}, ids)
}

func (s *CacheSuite) TestBackingErrorPropagates() {
	backingErr := errors.New("db down")
	s.backing.EXPECT().GetPGroupIDs(gomock.Any(), gomock.Any()).Return(nil, backingErr)

	_, err := s.cache.GetPGroupIDs(s.ctx, []string{"C*01"})
	s.Same(backingErr, err)
}

func (s *CacheSuite) TestBreakerSkipsRedisAfterFailures() {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache, err := New(s.client, s.backing,
		WithBreaker(2, time.Minute),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	cache.breaker.now = func() time.Time { return now }

	s.client.err = errors.New("timeout")
	s.backing.EXPECT().GetPGroupIDs(gomock.Any(), []string{"A*01"}).
		Return(map[string]int{"A*01": 1}, nil).Times(3)

	// Read and write both fail, which opens the breaker.
	_, err = cache.GetPGroupIDs(s.ctx, []string{"A*01"})
	s.Require().NoError(err)
	s.Equal(1, s.client.reads)

	_, err = cache.GetPGroupIDs(s.ctx, []string{"A*01"})
	s.Require().NoError(err)
	s.Equal(1, s.client.reads, "open breaker must not call redis")

	// After the cooldown Redis is tried again and, once healthy, populated.
	now = now.Add(2 * time.Minute)
	s.client.err = nil
	ids, err := cache.GetPGroupIDs(s.ctx, []string{"A*01"})
	s.Require().NoError(err)
	s.Equal(map[string]int{"A*01": 1}, ids)
	s.Equal(2, s.client.reads)
	s.Equal(map[string]string{"A*01": "1"}, s.client.hash)
}

func TestBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	b := newBreaker(3, time.Second)
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if b.failure() {
			t.Fatalf("breaker opened after %d failures", i+1)
		}
	}
	b.success()
	if b.failure() || !b.allow() {
		t.Fatal("success should reset the failure count")
	}
	b.failure()
	if !b.failure() || b.allow() {
		t.Fatal("expected breaker open after threshold")
	}
	now = now.Add(time.Second)
	if !b.allow() {
		t.Fatal("expected breaker to allow calls after cooldown")
	}
}
