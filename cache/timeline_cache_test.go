package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis 只实现时间轴缓存用到的命令
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestTimelineCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := NewTimelineCache(fake)

	data, err := c.Get(ctx, "ULcJ")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, c.Set(ctx, "ULcJ", []byte(`{"duration":1}`), time.Hour))
	assert.Equal(t, time.Hour, fake.ttl["timeline:ULcJ"])

	data, err = c.Get(ctx, "ULcJ")
	require.NoError(t, err)
	assert.Equal(t, `{"duration":1}`, string(data))

	require.NoError(t, c.Delete(ctx, "ULcJ"))
	data, err = c.Get(ctx, "ULcJ")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestTimelineCacheErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	c := NewTimelineCache(fake)

	_, err := c.Get(ctx, "ULcJ")
	assert.ErrorIs(t, err, fake.err)
	assert.Error(t, c.Set(ctx, "ULcJ", []byte("{}"), time.Hour))
}

func TestTimelineCacheWithoutClient(t *testing.T) {
	prev := RedisClient
	RedisClient = nil
	t.Cleanup(func() { RedisClient = prev })

	c := NewTimelineCache(nil)
	_, err := c.Get(context.Background(), "ULcJ")
	assert.Error(t, err)
	assert.Equal(t, "timeline:abc", TimelineKey("abc"))
}
