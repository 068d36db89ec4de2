package distributed_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ratings/pkg/distributed"
)

// redisClient returns a client for REDIS_ADDR or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewRunLock(t *testing.T) {
	Convey("Given no client", t, func() {
		_, err := distributed.NewRunLock(nil)

		Convey("Then construction fails", func() {
			So(err, ShouldEqual, distributed.ErrNilClient)
		})
	})
}

func TestRunLock(t *testing.T) {
	client := redisClient(t)

	Convey("Given a run lock on a fresh prefix", t, func() {
		ctx := context.Background()
		prefix := "ratings-test:" + uuid.NewString() + ":"
		l, err := distributed.NewRunLock(client, distributed.WithKeyPrefix(prefix), distributed.WithTTL(5*time.Second))
		So(err, ShouldBeNil)

		Convey("When the key is acquired", func() {
			lock, err := l.Acquire(ctx, "2024-01")
			So(err, ShouldBeNil)
			So(lock, ShouldNotBeNil)

			Convey("Then a second acquire is refused", func() {
				again, err := l.Acquire(ctx, "2024-01")
				So(err, ShouldBeNil)
				So(again, ShouldBeNil)
			})

			Convey("Then other keys are independent", func() {
				other, err := l.Acquire(ctx, "2024-02")
				So(err, ShouldBeNil)
				So(other, ShouldNotBeNil)
				So(other.Release(ctx), ShouldBeNil)
			})

			Convey("Then it lives under the prefix with the configured ttl", func() {
				So(lock.TTL(), ShouldEqual, 5*time.Second)
				ttl, err := client.PTTL(ctx, prefix+"2024-01").Result()
				So(err, ShouldBeNil)
				So(ttl, ShouldBeGreaterThan, 0)
				So(ttl, ShouldBeLessThanOrEqualTo, 5*time.Second)
			})

			Convey("Then the holder can extend and release it once", func() {
				So(lock.Extend(ctx, 10*time.Second), ShouldBeNil)
				ttl, _ := client.PTTL(ctx, prefix+"2024-01").Result()
				So(ttl, ShouldBeGreaterThan, 5*time.Second)

				So(lock.Release(ctx), ShouldBeNil)
				So(lock.Release(ctx), ShouldEqual, distributed.ErrLockNotHeld)
				So(lock.Extend(ctx, time.Second), ShouldEqual, distributed.ErrLockNotHeld)

				again, err := l.Acquire(ctx, "2024-01")
				So(err, ShouldBeNil)
				So(again, ShouldNotBeNil)
				So(again.Release(ctx), ShouldBeNil)
			})
		})

		Convey("When the lock expires under a new holder", func() {
			short, _ := distributed.NewRunLock(client, distributed.WithKeyPrefix(prefix), distributed.WithTTL(50*time.Millisecond))
			lock, err := short.Acquire(ctx, "2024-03")
			So(err, ShouldBeNil)
			time.Sleep(100 * time.Millisecond)
			taker, err := short.Acquire(ctx, "2024-03")
			So(err, ShouldBeNil)
			So(taker, ShouldNotBeNil)

			Convey("Then the old holder can neither extend nor release it", func() {
				So(lock.Extend(ctx, time.Second), ShouldEqual, distributed.ErrLockNotHeld)
				So(lock.Release(ctx), ShouldEqual, distributed.ErrLockNotHeld)
				So(taker.Release(ctx), ShouldBeNil)
			})
		})
	})
}
