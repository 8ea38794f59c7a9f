package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/communet/malmoon-server/internal/store/redisstore"
)

const retryQueueKey = "session:room:deletion:retry"

// RetryItem is one pending room-deletion compensating action.
type RetryItem struct {
	RoomName   string `json:"roomName"`
	RetryCount int    `json:"retryCount"`
}

// RetryQueue is a durable FIFO of failed provider deletions, held as a
// list of JSON blobs in the fast store.
type RetryQueue struct {
	kv redisstore.KV
}

func NewRetryQueue(kv redisstore.KV) *RetryQueue {
	return &RetryQueue{kv: kv}
}

func (q *RetryQueue) Enqueue(ctx context.Context, item RetryItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.kv.RPush(ctx, retryQueueKey, string(raw))
}

// Dequeue pops the oldest item, or returns (nil, nil) when the queue is
// empty. An undecodable entry is dropped with an error log; one corrupt
// blob must not wedge the drain.
func (q *RetryQueue) Dequeue(ctx context.Context) (*RetryItem, error) {
	raw, err := q.kv.LPop(ctx, retryQueueKey)
	if err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var item RetryItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		log.Printf("retry queue: dropping undecodable item %q: %v", raw, err)
		return nil, nil
	}
	return &item, nil
}

// DrainScheduler periodically re-attempts failed room deletions in
// bounded batches.
type DrainScheduler struct {
	queue       *RetryQueue
	rooms       RoomDeleter
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewDrainScheduler(queue *RetryQueue, rooms RoomDeleter, interval time.Duration, batchSize, maxAttempts int) *DrainScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &DrainScheduler{
		queue:       queue,
		rooms:       rooms,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Run drives DrainOnce on a fixed period until ctx is cancelled. An
// in-progress batch is not cancelled mid-item; each provider call is
// bounded by its own client timeout.
func (s *DrainScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("retry drain scheduler started interval=%s batch=%d maxAttempts=%d",
		s.interval, s.batchSize, s.maxAttempts)

	for {
		select {
		case <-ctx.Done():
			log.Printf("retry drain scheduler stopped")
			return
		case <-ticker.C:
			s.DrainOnce(ctx)
		}
	}
}

// DrainOnce dequeues up to batchSize items, then re-attempts each one.
// Dequeuing fully before processing means a failing item re-enqueued
// during this run is never attempted twice in the same run.
func (s *DrainScheduler) DrainOnce(ctx context.Context) {
	items := make([]RetryItem, 0, s.batchSize)
	for len(items) < s.batchSize {
		item, err := s.queue.Dequeue(ctx)
		if err != nil {
			log.Printf("retry drain: dequeue failed: %v", err)
			break
		}
		if item == nil {
			break
		}
		items = append(items, *item)
	}

	for _, item := range items {
		if err := s.rooms.DeleteRoom(ctx, item.RoomName); err != nil {
			if item.RetryCount+1 < s.maxAttempts {
				log.Printf("retry drain: room=%s deletion failed (attempt %d): %v",
					item.RoomName, item.RetryCount+1, err)
				if qerr := s.queue.Enqueue(ctx, RetryItem{
					RoomName:   item.RoomName,
					RetryCount: item.RetryCount + 1,
				}); qerr != nil {
					log.Printf("retry drain: re-enqueue room=%s failed: %v", item.RoomName, qerr)
				}
			} else {
				log.Printf("retry drain: ERROR room=%s abandoned after %d attempts: %v",
					item.RoomName, item.RetryCount+1, err)
			}
			continue
		}
		log.Printf("retry drain: room=%s deleted", item.RoomName)
	}
}
