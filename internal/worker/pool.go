package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"connectez-backend/internal/repository"
	"connectez-backend/internal/services"
)

const statsQueue = "queue:stats-refresh"

// StatsChannel is the pub/sub channel carrying recomputed stats for a
// referral code.
func StatsChannel(referralCode string) string {
	return "stats_updates:" + referralCode
}

// Pool drains the stats-refresh queue: for each queued referral code it
// recomputes the aggregate view and publishes it for the notifier hub.
// Keeping the recompute off the heartbeat path keeps heartbeat handling
// fire-and-forget.
type Pool struct {
	redis       *redis.Client
	stats       *repository.StatsRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, stats *repository.StatsRepo, workerCount int) *Pool {
	return &Pool{
		redis:       redisClient,
		stats:       stats,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d stats worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Stats worker %d shutting down", id)
			return
		default:
		}

		res, err := p.redis.BRPop(context.Background(), 5*time.Second, statsQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Printf("Stats worker %d: queue pop failed: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		p.refresh(res[1])
	}
}

func (p *Pool) refresh(referralCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := p.stats.GetReferralStats(ctx, referralCode, time.Now().UTC(), services.ActiveUserWindow, services.FreshnessWindow)
	if err != nil {
		log.Printf("stats refresh failed for referral %s: %v", referralCode, err)
		return
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}

	if err := p.redis.Publish(ctx, StatsChannel(referralCode), payload).Err(); err != nil {
		log.Printf("stats publish failed for referral %s: %v", referralCode, err)
	}
}

// Queue is the producer side, used by the tracking service after every state
// change that can move displayed aggregates. Enqueue failures are logged and
// dropped; a refresh push must never fail a heartbeat.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) StatsChanged(referralCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := q.redis.LPush(ctx, statsQueue, referralCode).Err(); err != nil {
		log.Printf("failed to enqueue stats refresh for referral %s: %v", referralCode, err)
	}
}
