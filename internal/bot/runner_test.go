package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform"
)

func TestRunner_HandlesAllUpdates(t *testing.T) {
	f := newFixture(t)
	for id := int64(1); id <= 10; id++ {
		f.client.SetStatus(id, platform.StatusMember)
	}
	updates := make(chan model.Inbound)
	done := make(chan struct{})
	go func() {
		NewRunner(f.handler, 4, time.Second).Run(context.Background(), updates)
		close(done)
	}()

	for id := int64(1); id <= 10; id++ {
		updates <- message(model.Sender{ID: id, FirstName: "u"}, model.TextContent("hi"))
	}
	close(updates)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not drain")
	}
	assert.Len(t, f.client.SentTo(operatorID), 10)
}

func TestRunner_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRunner(f.handler, 1, time.Second).Run(ctx, make(chan model.Inbound))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "runner ignored cancellation")
	}
}

func TestRunner_BroadcastSurvivesShutdown(t *testing.T) {
	f := newFixture(t)
	for _, id := range []int64{42, 43, 44, 45} {
		require.NoError(t, f.users.Register(context.Background(), &model.User{ID: id}))
	}
	f.client.Latency = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan model.Inbound)
	done := make(chan struct{})
	go func() {
		NewRunner(f.handler, 1, 5*time.Second).Run(ctx, updates)
		close(done)
	}()

	updates <- command(op, "broadcast", "going down for maintenance")
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not drain")
	}
	for _, id := range []int64{42, 43, 44, 45} {
		assert.Equal(t, "going down for maintenance", lastText(t, f, id))
	}
	assert.Equal(t, "✅ Broadcast sent to 4 of 4 users.", lastText(t, f, operatorID))
}

func TestRunner_CancelsHandlersAfterDrain(t *testing.T) {
	f := newFixture(t)
	f.client.SetStatus(ana.ID, platform.StatusMember)
	f.client.BlockSends = true

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan model.Inbound)
	done := make(chan struct{})
	go func() {
		NewRunner(f.handler, 1, 50*time.Millisecond).Run(ctx, updates)
		close(done)
	}()

	updates <- message(ana, model.TextContent("hello?"))
	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Less(t, time.Since(start), 800*time.Millisecond)
}

func TestRunner_RecoversPanics(t *testing.T) {
	r := NewRunner(nil, 1, time.Second)
	assert.NotPanics(t, func() {
		r.handle(context.Background(), model.Inbound{From: model.Sender{ID: 1}})
	})
}
