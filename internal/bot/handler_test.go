package bot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform"
	"github.com/d60-Lab/relay-bot/internal/platform/platformtest"
	"github.com/d60-Lab/relay-bot/internal/repository"
	"github.com/d60-Lab/relay-bot/internal/service"
)

const (
	operatorID = int64(1001)
	gateGroup  = "@club"
)

type fixture struct {
	client  *platformtest.Fake
	users   repository.UserRepository
	handler *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := platformtest.New()
	client.SetStatus(operatorID, platform.StatusOwner)
	users := repository.NewRedisUserRepository(rdb)
	correlations := repository.NewMemoryCorrelationRepository(1000, time.Hour)
	gate := service.NewMembershipGate(client, gateGroup, time.Second)
	relay := service.NewRelayService(client, gate, users, correlations, service.RelayOptions{OperatorID: operatorID, CallTimeout: time.Second})
	broadcast := service.NewBroadcastService(client, users, service.BroadcastOptions{OperatorID: operatorID, Workers: 2, CallTimeout: time.Second})
	return &fixture{
		client:  client,
		users:   users,
		handler: NewHandler(client, relay, broadcast, gateGroup, time.Second),
	}
}

func message(from model.Sender, content model.Content) model.Inbound {
	return model.Inbound{MessageID: 1, ChatID: from.ID, From: from, Content: content}
}

func command(from model.Sender, name, args string) model.Inbound {
	in := message(from, model.TextContent("/"+name+" "+args))
	in.Command, in.Args = name, args
	return in
}

func lastText(t *testing.T, f *fixture, to int64) string {
	t.Helper()
	sent := f.client.SentTo(to)
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Text
}

var (
	ana = model.Sender{ID: 42, FirstName: "Ana"}
	eve = model.Sender{ID: 7, FirstName: "Eve", UserName: "eve"}
	op  = model.Sender{ID: operatorID, FirstName: "Op"}
)

func TestStart_NonMemberGetsJoinPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.Handle(ctx, command(eve, "start", ""))

	assert.Contains(t, lastText(t, f, 7), "You must join @club")
	ids, err := f.users.AllUserIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, int64(7))
}

func TestStart_MemberIsRegistered(t *testing.T) {
	f := newFixture(t)
	f.client.SetStatus(42, platform.StatusMember)
	ctx := context.Background()

	f.handler.Handle(ctx, command(ana, "start", ""))

	assert.Equal(t, usageNotice, lastText(t, f, 42))
	ids, err := f.users.AllUserIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, int64(42))
}

func TestInfo(t *testing.T) {
	f := newFixture(t)

	f.handler.Handle(context.Background(), command(eve, "info", ""))
	got := lastText(t, f, 7)
	assert.Contains(t, got, "<code>7</code>")
	assert.Contains(t, got, "Eve")
	assert.Contains(t, got, "@eve")

	f.handler.Handle(context.Background(), command(ana, "info", ""))
	assert.Contains(t, lastText(t, f, 42), "Username: N/A")
}

func TestRoundTrip_UserToOperatorAndBack(t *testing.T) {
	f := newFixture(t)
	f.client.SetStatus(42, platform.StatusMember)
	ctx := context.Background()

	f.handler.Handle(ctx, message(ana, model.TextContent("hello")))
	forwarded := f.client.SentTo(operatorID)
	require.Len(t, forwarded, 1)
	assert.Contains(t, forwarded[0].Text, "hello")

	reply := message(op, model.TextContent("hi back"))
	reply.ReplyTo = &forwarded[0].MessageID
	f.handler.Handle(ctx, reply)

	got := lastText(t, f, 42)
	assert.Contains(t, got, "Reply from operator")
	assert.Contains(t, got, "hi back")
}

func TestNonMemberMessageGetsJoinFirst(t *testing.T) {
	f := newFixture(t)

	f.handler.Handle(context.Background(), message(eve, model.TextContent("hello?")))

	assert.Contains(t, lastText(t, f, 7), "Join @club first")
	assert.Empty(t, f.client.SentTo(operatorID))
}

func TestOperatorReplyToUnknownMessage(t *testing.T) {
	f := newFixture(t)
	arbitrary := 999

	reply := message(op, model.TextContent("anyone?"))
	reply.ReplyTo = &arbitrary
	f.handler.Handle(context.Background(), reply)

	sent := f.client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, operatorID, sent[0].To)
	assert.Equal(t, unknownTarget, sent[0].Text)
}

func TestOperatorMessageWithoutReplyGetsHint(t *testing.T) {
	f := newFixture(t)

	f.handler.Handle(context.Background(), message(op, model.TextContent("hello")))

	assert.Equal(t, replyHint, lastText(t, f, operatorID))
}

func TestForwardFailureNotifiesSender(t *testing.T) {
	f := newFixture(t)
	f.client.SetStatus(42, platform.StatusMember)
	f.client.FailSendTo(operatorID, platformtest.ErrBlocked)

	f.handler.Handle(context.Background(), message(ana, model.TextContent("hello")))

	assert.Equal(t, deliveryFailed, lastText(t, f, 42))
}

func TestBroadcastCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []int64{42, 43, 44} {
		require.NoError(t, f.users.Register(ctx, &model.User{ID: id}))
	}
	f.client.FailSendTo(44, platformtest.ErrBlocked)

	f.handler.Handle(ctx, command(op, "broadcast", "maintenance tonight"))

	assert.Equal(t, "✅ Broadcast sent to 2 of 3 users.", lastText(t, f, operatorID))
	assert.Equal(t, "maintenance tonight", lastText(t, f, 42))
}

func TestBroadcastCommand_NonOperator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Register(ctx, &model.User{ID: 42}))

	f.handler.Handle(ctx, command(eve, "broadcast", "spam"))

	assert.Equal(t, operatorOnly, lastText(t, f, 7))
	assert.Empty(t, f.client.SentTo(42))
}

func TestBroadcastCommand_Usage(t *testing.T) {
	f := newFixture(t)

	f.handler.Handle(context.Background(), command(op, "broadcast", ""))

	assert.Equal(t, broadcastUsage, lastText(t, f, operatorID))
}
