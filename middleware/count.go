package middleware

import (
	"os"
	"sync"
	"time"

	"github.com/go-ego/murmur"
	"github.com/gomodule/redigo/redis"
	"github.com/valyala/fasthttp"
)

const (
	countingHashKey = "relay:counting"
)

var (
	hostName string
)

func init() {
	tmp, err := os.Hostname()
	if err != nil {
		logger.WithError(err).Warn("can not resolve hostname")
		hostName = "unknown-host"
	} else {
		hostName = tmp
	}
}

// Counter tallies requests per method+path. Writes are sharded over
// murmur-hashed channels so concurrent requests never contend on one
// lock, and the aggregate is pushed to redis periodically when a pool is
// configured.
type Counter struct {
	shardNumber int
	ch          []chan string

	mu     sync.RWMutex
	counts map[string]uint64

	pool          *redis.Pool
	persistPeriod time.Duration
}

func NewCounter(shardNumber int, persistPeriod time.Duration, redisAddr, redisPassword string) *Counter {
	if shardNumber <= 0 {
		shardNumber = 4
	}
	c := &Counter{
		shardNumber:   shardNumber,
		counts:        map[string]uint64{},
		persistPeriod: persistPeriod,
	}
	for shard := 0; shard < shardNumber; shard++ {
		c.ch = append(c.ch, make(chan string, 500))
	}
	if redisAddr != "" {
		c.pool = &redis.Pool{
			MaxIdle:     3,
			IdleTimeout: 240 * time.Second,
			Dial: func() (redis.Conn, error) {
				if redisPassword != "" {
					return redis.Dial("tcp", redisAddr, redis.DialPassword(redisPassword))
				}
				return redis.Dial("tcp", redisAddr)
			},
		}
	}
	for _, ch := range c.ch {
		go c.consuming(ch)
	}
	if c.pool != nil && c.persistPeriod > 0 {
		go c.persisting()
	}
	return c
}

func (c *Counter) Work(ctx *fasthttp.RequestCtx, errChan chan error) {
	key := string(ctx.Method()) + " " + string(ctx.Path())
	shard := murmur.Sum32(key) % uint32(c.shardNumber)
	timer := time.NewTimer(5 * time.Second)
	select {
	case <-timer.C:
		logger.Warn("counting channel maybe full")
	case c.ch[shard] <- key:
		// pass
	}
	timer.Stop()
	errChan <- nil
}

func (c *Counter) consuming(ch chan string) {
	for key := range ch {
		c.mu.Lock()
		c.counts[key]++
		c.mu.Unlock()
	}
}

func (c *Counter) persisting() {
	for {
		time.Sleep(c.persistPeriod)
		snapshot := c.Summary()
		conn := c.pool.Get()
		for key, count := range snapshot {
			if _, err := conn.Do("HSET", countingHashKey+":"+hostName, key, count); err != nil {
				logger.WithError(err).Warn("counting persistence failed")
				break
			}
		}
		if err := conn.Close(); err != nil {
			logger.WithError(err).Debug("redis conn close failed")
		}
	}
}

// Summary snapshots the current per-path request tallies.
func (c *Counter) Summary() map[string]uint64 {
	c.mu.RLock()
	snapshot := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		snapshot[k] = v
	}
	c.mu.RUnlock()
	return snapshot
}
