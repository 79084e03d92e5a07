package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMailbox_ReentrantPostRunsAfterCurrent(t *testing.T) {
	mb := &mailbox{logger: zap.NewNop()}
	var order []string

	mb.post(func() {
		order = append(order, "first:start")
		mb.post(func() { order = append(order, "nested") })
		order = append(order, "first:end")
	})
	mb.post(func() { order = append(order, "second") })

	assert.Equal(t, []string{"first:start", "first:end", "nested", "second"}, order)
}

func TestMailbox_CallWaitsForQueuedWork(t *testing.T) {
	mb := &mailbox{logger: zap.NewNop()}
	release := make(chan struct{})
	started := make(chan struct{})

	var mu sync.Mutex
	var order []int

	go mb.post(func() {
		close(started)
		<-release
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	<-started

	done := make(chan error, 1)
	go func() {
		done <- mb.call(context.Background(), func() {
			mu.Lock()
			order = append(order, 2)
			mu.Unlock()
		})
	}()

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, order)
}

func TestMailbox_CallHonorsContext(t *testing.T) {
	mb := &mailbox{logger: zap.NewNop()}
	release := make(chan struct{})
	started := make(chan struct{})

	go mb.post(func() {
		close(started)
		<-release
	})
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := mb.call(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMailbox_PanicDoesNotWedge(t *testing.T) {
	mb := &mailbox{logger: zap.NewNop()}
	ran := false

	mb.post(func() { panic("boom") })
	mb.post(func() { ran = true })

	assert.True(t, ran)
}
