package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements the handful of commands Store issues. Embedding the
// interface makes any other command panic.
type fakeRedis struct {
	redis.Cmdable

	mu   sync.Mutex
	sets map[string]map[string]struct{}
	vals map[string]string
	ttl  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		sets: make(map[string]map[string]struct{}),
		vals: make(map[string]string),
		ttl:  make(map[string]time.Duration),
	}
}

func (f *fakeRedis) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	var added int64
	for _, m := range members {
		k := fmt.Sprint(m)
		if _, ok := set[k]; !ok {
			set[k] = struct{}{}
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeRedis) SRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for _, m := range members {
		k := fmt.Sprint(m)
		if _, ok := f.sets[key][k]; ok {
			delete(f.sets[key], k)
			removed++
		}
	}
	if len(f.sets[key]) == 0 {
		delete(f.sets, key)
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedis) SCard(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.sets[key])), nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sets[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.vals[key] = string(v)
	default:
		f.vals[key] = fmt.Sprint(v)
	}
	if expiration > 0 {
		f.ttl[key] = expiration
	} else {
		delete(f.ttl, key)
	}
	return redis.NewStatusResult("OK", nil)
}

// lapse drops every key that carries a ttl, as redis would once it runs out.
func (f *fakeRedis) lapse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.ttl {
		delete(f.sets, key)
		delete(f.vals, key)
		delete(f.ttl, key)
	}
}

func (f *fakeRedis) ttlOf(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttl[key]
}

func TestKeys(t *testing.T) {
	s := NewStore(nil, "teamchat", time.Minute)

	if got := s.connKey("u1"); got != "teamchat:conn:u1" {
		t.Errorf("connKey = %q", got)
	}
	if got := s.presenceKey("u1"); got != "teamchat:presence:u1" {
		t.Errorf("presenceKey = %q", got)
	}
}

func TestStore_OnlineOffline(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	s := NewStore(rdb, "teamchat", time.Minute)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	status := func(userID string) Status {
		t.Helper()
		st, err := s.Get(ctx, userID)
		if err != nil {
			t.Fatal(err)
		}
		return st
	}

	if st := status("ghost"); st.Status != "offline" {
		t.Fatalf("unknown user = %+v", st)
	}

	steps := []struct {
		name   string
		apply  func() error
		status string
	}{
		{"first connection", func() error { return s.Online(ctx, "u1", "web") }, "online"},
		{"second connection", func() error { return s.Online(ctx, "u1", "phone") }, "online"},
		{"one of two closes", func() error { return s.Offline(ctx, "u1", "web") }, "online"},
		{"last closes", func() error { return s.Offline(ctx, "u1", "phone") }, "offline"},
		{"offline twice", func() error { return s.Offline(ctx, "u1", "phone") }, "offline"},
	}
	for _, step := range steps {
		if err := step.apply(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if st := status("u1"); st.Status != step.status || st.LastSeen != 1700000000 {
			t.Fatalf("%s: status = %+v, want %s", step.name, st, step.status)
		}
	}

	if rdb.ttlOf("teamchat:presence:u1") != 0 {
		t.Fatal("offline status must not expire")
	}
}

func TestStore_RefreshKeepsUserOnline(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	s := NewStore(rdb, "teamchat", 90*time.Second)

	if err := s.Online(ctx, "u1", "web"); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"teamchat:conn:u1", "teamchat:presence:u1"} {
		if got := rdb.ttlOf(key); got != 90*time.Second {
			t.Fatalf("%s ttl = %v", key, got)
		}
	}

	// Without refreshes the keys run out and the user reads as offline.
	rdb.lapse()
	if st, _ := s.Get(ctx, "u1"); st.Status != "offline" {
		t.Fatalf("after lapse = %+v", st)
	}

	if err := s.Refresh(ctx, "u1", "web"); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Get(ctx, "u1"); st.Status != "online" {
		t.Fatalf("after refresh = %+v", st)
	}
	if got := rdb.ttlOf("teamchat:conn:u1"); got != 90*time.Second {
		t.Fatalf("conn ttl after refresh = %v", got)
	}

	// The refreshed connection still counts when it closes.
	if err := s.Offline(ctx, "u1", "web"); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Get(ctx, "u1"); st.Status != "offline" {
		t.Fatalf("after offline = %+v", st)
	}
}
