package director

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/settings"
	"github.com/vmihailenco/taskq/v3"
	"github.com/vmihailenco/taskq/v3/memqueue"
	"github.com/vmihailenco/taskq/v3/redisq"
)

func RedisClient(s *settings.Settings) *redis.Client {
	connectionString := fmt.Sprintf("%v:%v", s.RedisHost, s.RedisPort)

	rdb := redis.NewClient(&redis.Options{
		Addr:     connectionString,
		Password: s.RedisPassword,
		DB:       0, // use default DB
	})

	return rdb
}

// ReservationTimeout is how long a consumer may hold a chunk before it is
// redelivered. It covers every device of a full chunk hitting all of its
// timeouts, plus a margin.
func ReservationTimeout(s *settings.Settings) time.Duration {
	perDevice := s.ReadyTimeout + s.ExecTimeout + s.TeardownTimeout
	concurrency := s.DeviceConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	rounds := (s.ChunkSize + concurrency - 1) / concurrency
	if rounds < 1 {
		rounds = 1
	}
	return time.Duration(rounds)*perDevice + 5*time.Minute
}

// NewQueue builds the bounded work queue behind the event bus. The redis
// backend requires rdb; the memory backend uses it only for deduplication
// when given.
func NewQueue(s *settings.Settings, rdb *redis.Client) (taskq.Queue, error) {
	opts := &taskq.QueueOptions{
		Name:               s.QueueName,
		MinNumWorker:       int32(s.Workers),
		MaxNumWorker:       int32(s.Workers),
		BufferSize:         s.Workers * 2,
		ReservationTimeout: ReservationTimeout(s),
	}
	if rdb != nil {
		opts.Redis = rdb
	}

	switch s.QueueBackend {
	case settings.QueueBackendRedis:
		if rdb == nil {
			return nil, errors.New("NewQueue: redis backend needs a redis client")
		}
		return redisq.NewFactory().RegisterQueue(opts), nil
	case settings.QueueBackendMemory, "":
		return memqueue.NewFactory().RegisterQueue(opts), nil
	default:
		return nil, errors.Errorf("NewQueue: unknown queue backend %q", s.QueueBackend)
	}
}
