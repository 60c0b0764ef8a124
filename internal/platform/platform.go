// Package platform describes the messaging capabilities the relay consumes.
package platform

import (
	"context"

	"github.com/d60-Lab/relay-bot/internal/model"
)

// MembershipStatus is a user's standing in a group, normalized across platforms.
type MembershipStatus string

const (
	StatusOwner         MembershipStatus = "owner"
	StatusAdministrator MembershipStatus = "administrator"
	StatusMember        MembershipStatus = "member"
	StatusRestricted    MembershipStatus = "restricted"
	StatusLeft          MembershipStatus = "left"
	StatusBanned        MembershipStatus = "banned"
	StatusUnknown       MembershipStatus = "unknown"
)

// Format hints how text should be parsed by the platform.
type Format int

const (
	FormatPlain Format = iota
	FormatHTML
)

// Client is the outbound half of a messaging platform. Every call must
// return once ctx is done.
type Client interface {
	GetMembershipStatus(ctx context.Context, group string, userID int64) (MembershipStatus, error)
	SendText(ctx context.Context, recipientID int64, text string, format Format) (int, error)
	SendMedia(ctx context.Context, recipientID int64, kind model.ContentKind, fileRef, caption string, format Format) (int, error)
	// ProfileURL returns a deep link to the user's profile, or "" if the
	// platform has none.
	ProfileURL(userID int64) string
}
