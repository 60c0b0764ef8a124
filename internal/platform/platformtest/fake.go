// Package platformtest provides an in-memory platform.Client that records
// every call for assertions.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform"
)

// ErrBlocked mimics "bot was blocked by the user".
var ErrBlocked = errors.New("forbidden: bot was blocked by the user")

// Sent is one recorded SendText/SendMedia call.
type Sent struct {
	MessageID int
	To        int64
	Kind      model.ContentKind
	FileRef   string
	Text      string
	Format    platform.Format
}

// Fake implements platform.Client.
type Fake struct {
	mu         sync.Mutex
	nextID     int
	members    map[int64]platform.MembershipStatus
	statusErr  map[int64]error
	failSendTo map[int64]error
	sent       []Sent
	calls      int
	// BlockStatus and BlockSends make the respective calls hang until ctx
	// expires. Set them before the fake is shared between goroutines.
	BlockStatus bool
	BlockSends  bool
	// Latency is added to every send.
	Latency time.Duration
}

var _ platform.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		nextID:     1000,
		members:    make(map[int64]platform.MembershipStatus),
		statusErr:  make(map[int64]error),
		failSendTo: make(map[int64]error),
	}
}

// SetStatus sets the membership status reported for userID.
func (f *Fake) SetStatus(userID int64, s platform.MembershipStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[userID] = s
}

// FailStatus makes membership lookups for userID return err.
func (f *Fake) FailStatus(userID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr[userID] = err
}

// FailSendTo makes every send to recipientID return err.
func (f *Fake) FailSendTo(recipientID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSendTo[recipientID] = err
}

// Sent returns a copy of all successful sends.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// SentTo filters Sent by recipient.
func (f *Fake) SentTo(recipientID int64) []Sent {
	var out []Sent
	for _, s := range f.Sent() {
		if s.To == recipientID {
			out = append(out, s)
		}
	}
	return out
}

// SendCalls counts every send attempt, failed ones included.
func (f *Fake) SendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) GetMembershipStatus(ctx context.Context, _ string, userID int64) (platform.MembershipStatus, error) {
	if err := wait(ctx, f.BlockStatus); err != nil {
		return platform.StatusUnknown, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusErr[userID]; err != nil {
		return platform.StatusUnknown, err
	}
	if s, ok := f.members[userID]; ok {
		return s, nil
	}
	return platform.StatusLeft, nil
}

func (f *Fake) SendText(ctx context.Context, recipientID int64, text string, format platform.Format) (int, error) {
	return f.record(ctx, Sent{To: recipientID, Kind: model.KindText, Text: text, Format: format})
}

func (f *Fake) SendMedia(ctx context.Context, recipientID int64, kind model.ContentKind, fileRef, caption string, format platform.Format) (int, error) {
	if !kind.IsMedia() {
		return 0, fmt.Errorf("platformtest: %s is not a media kind", kind)
	}
	return f.record(ctx, Sent{To: recipientID, Kind: kind, FileRef: fileRef, Text: caption, Format: format})
}

func (f *Fake) ProfileURL(userID int64) string {
	return fmt.Sprintf("https://chat.example/u/%d", userID)
}

func (f *Fake) record(ctx context.Context, s Sent) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := wait(ctx, f.BlockSends); err != nil {
		return 0, err
	}
	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failSendTo[s.To]; err != nil {
		return 0, err
	}
	f.nextID++
	s.MessageID = f.nextID
	f.sent = append(f.sent, s)
	return s.MessageID, nil
}

func wait(ctx context.Context, block bool) error {
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return ctx.Err()
}
