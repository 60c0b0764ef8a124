package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/d60-Lab/relay-bot/internal/platform"
	"github.com/d60-Lab/relay-bot/internal/platform/platformtest"
)

func TestMembershipGate_Statuses(t *testing.T) {
	cases := []struct {
		status platform.MembershipStatus
		want   bool
	}{
		{platform.StatusMember, true},
		{platform.StatusOwner, true},
		{platform.StatusAdministrator, true},
		{platform.StatusRestricted, false},
		{platform.StatusLeft, false},
		{platform.StatusBanned, false},
		{platform.StatusUnknown, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			client := platformtest.New()
			client.SetStatus(42, tc.status)
			gate := NewMembershipGate(client, gateGroup, time.Second)
			assert.Equal(t, tc.want, gate.IsAuthorized(context.Background(), 42))
		})
	}
}

func TestMembershipGate_FailsClosedOnError(t *testing.T) {
	client := platformtest.New()
	client.SetStatus(42, platform.StatusMember)
	client.FailStatus(42, errNetwork)
	gate := NewMembershipGate(client, gateGroup, time.Second)

	assert.False(t, gate.IsAuthorized(context.Background(), 42))
}

func TestMembershipGate_FailsClosedOnTimeout(t *testing.T) {
	client := platformtest.New()
	client.SetStatus(42, platform.StatusMember)
	client.BlockStatus = true
	gate := NewMembershipGate(client, gateGroup, 20*time.Millisecond)

	assert.False(t, gate.IsAuthorized(context.Background(), 42))
}

func TestMembershipGate_NoCaching(t *testing.T) {
	client := platformtest.New()
	client.SetStatus(42, platform.StatusMember)
	gate := NewMembershipGate(client, gateGroup, time.Second)
	ctx := context.Background()

	assert.True(t, gate.IsAuthorized(ctx, 42))
	client.SetStatus(42, platform.StatusBanned)
	assert.False(t, gate.IsAuthorized(ctx, 42))
}
