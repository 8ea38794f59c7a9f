package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func queueLen(t *testing.T, kv *fakeKV) int {
	t.Helper()
	items, err := kv.LRange(context.Background(), retryQueueKey)
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	return len(items)
}

func TestDrainOnce_BoundedBatch(t *testing.T) {
	kv := newFakeKV()
	queue := NewRetryQueue(kv)
	deleter := &fakeDeleter{err: errors.New("still down")}
	sched := NewDrainScheduler(queue, deleter, time.Minute, 2, 5)

	ctx := context.Background()
	for _, room := range []string{"r1", "r2", "r3", "r4", "r5"} {
		if err := queue.Enqueue(ctx, RetryItem{RoomName: room}); err != nil {
			t.Fatalf("enqueue %s: %v", room, err)
		}
	}

	sched.DrainOnce(ctx)

	if deleter.callCount() != 2 {
		t.Fatalf("attempts in run = %d, want exactly the batch size 2", deleter.callCount())
	}
	// Two failed items went back on the queue; three were never touched.
	if n := queueLen(t, kv); n != 5 {
		t.Fatalf("queue length after run = %d, want 5", n)
	}

	sched.DrainOnce(ctx)
	if deleter.callCount() != 4 {
		t.Fatalf("attempts after two runs = %d, want 4", deleter.callCount())
	}
}

func TestDrainOnce_SameItemOncePerRun(t *testing.T) {
	kv := newFakeKV()
	queue := NewRetryQueue(kv)
	deleter := &fakeDeleter{err: errors.New("still down")}
	sched := NewDrainScheduler(queue, deleter, time.Minute, 5, 10)

	ctx := context.Background()
	if err := queue.Enqueue(ctx, RetryItem{RoomName: "stuck"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sched.DrainOnce(ctx)

	if deleter.callCount() != 1 {
		t.Fatalf("attempts = %d, want 1; a re-enqueued item must wait for the next run", deleter.callCount())
	}
	if n := queueLen(t, kv); n != 1 {
		t.Fatalf("queue length = %d, want 1", n)
	}
}

func TestDrain_AbandonsAfterMaxAttempts(t *testing.T) {
	kv := newFakeKV()
	queue := NewRetryQueue(kv)
	deleter := &fakeDeleter{err: errors.New("permanently down")}
	maxAttempts := 3
	sched := NewDrainScheduler(queue, deleter, time.Minute, 10, maxAttempts)

	ctx := context.Background()
	if err := queue.Enqueue(ctx, RetryItem{RoomName: "doomed"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < maxAttempts+1; i++ {
		sched.DrainOnce(ctx)
	}

	if n := queueLen(t, kv); n != 0 {
		t.Fatalf("queue length = %d, want 0 after abandonment", n)
	}
	if deleter.callCount() != maxAttempts {
		t.Fatalf("attempts = %d, want %d", deleter.callCount(), maxAttempts)
	}
}

func TestDrain_SuccessDropsItem(t *testing.T) {
	kv := newFakeKV()
	queue := NewRetryQueue(kv)
	deleter := &fakeDeleter{}
	sched := NewDrainScheduler(queue, deleter, time.Minute, 10, 5)

	ctx := context.Background()
	if err := queue.Enqueue(ctx, RetryItem{RoomName: "recovers", RetryCount: 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sched.DrainOnce(ctx)

	if n := queueLen(t, kv); n != 0 {
		t.Fatalf("queue length = %d, want 0 after success", n)
	}
	if deleter.callCount() != 1 {
		t.Fatalf("attempts = %d, want 1", deleter.callCount())
	}
}

func TestDequeue_DropsCorruptItem(t *testing.T) {
	kv := newFakeKV()
	queue := NewRetryQueue(kv)

	ctx := context.Background()
	if err := kv.RPush(ctx, retryQueueKey, "{not json"); err != nil {
		t.Fatalf("rpush: %v", err)
	}
	if err := queue.Enqueue(ctx, RetryItem{RoomName: "ok"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	item, err := queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if item != nil {
		t.Fatalf("corrupt entry should be dropped, got %+v", item)
	}

	item, err = queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if item == nil || item.RoomName != "ok" {
		t.Fatalf("item = %+v, want RoomName=ok", item)
	}
}
