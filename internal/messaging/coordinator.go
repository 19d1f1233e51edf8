package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/feed"
	"github.com/oggyb/muzz-connect/internal/metrics"
	"github.com/oggyb/muzz-connect/internal/repository"
)

// Reason explains a rejected send. Rejections are results, not errors.
type Reason string

const (
	ReasonPremiumRequired Reason = "premium_required"
	ReasonEmptyBody       Reason = "empty_body"
	ReasonTooLong         Reason = "too_long"
	ReasonStreamEnded     Reason = "stream_ended"
)

// MaxBodyLength is the longest accepted message, in characters.
const MaxBodyLength = 4000

// SendResult is Delivered (Message set) or Rejected (Reason set).
type SendResult struct {
	Message *db.Message
	Reason  Reason
}

func (r SendResult) Delivered() bool { return r.Reason == "" && r.Message != nil }

func rejected(reason Reason) SendResult {
	metrics.SendsRejectedTotal.WithLabelValues(string(reason)).Inc()
	return SendResult{Reason: reason}
}

var (
	ErrInvalidKey      = fmt.Errorf("%w: unknown conversation key", svcErr.ErrInvalid)
	ErrNotParticipant  = fmt.Errorf("%w: not a participant of this conversation", svcErr.ErrPermission)
	ErrStreamNotFound  = fmt.Errorf("%w: stream not found", svcErr.ErrNotFound)
	ErrPremiumRequired = fmt.Errorf("%w: premium required", svcErr.ErrPermission)
)

// Gate answers entitlement questions; see entitlement.Gate.
type Gate interface {
	IsPremium(ctx context.Context, userID string) bool
	CanMessage(ctx context.Context, sender, receiver string) bool
}

// InboxKey is the feed key carrying conversation-list changes for userID.
func InboxKey(userID string) string { return "inbox:" + userID }

type Coordinator struct {
	messages *repository.MessageRepository
	streams  *repository.StreamRepository
	gate     Gate
	feed     feed.Feed
	log      *slog.Logger

	markReadTimeout time.Duration
}

func NewCoordinator(
	messages *repository.MessageRepository,
	streams *repository.StreamRepository,
	gate Gate,
	f feed.Feed,
	log *slog.Logger,
) *Coordinator {
	return &Coordinator{
		messages:        messages,
		streams:         streams,
		gate:            gate,
		feed:            f,
		log:             log,
		markReadTimeout: 10 * time.Second,
	}
}

// CheckBody returns why body cannot be sent, or "" when it can.
func CheckBody(body string) Reason {
	switch {
	case strings.TrimSpace(body) == "":
		return ReasonEmptyBody
	case utf8.RuneCountInString(body) > MaxBodyLength:
		return ReasonTooLong
	}
	return ""
}

// SendDirect sends body from sender to receiver.
func (c *Coordinator) SendDirect(ctx context.Context, sender, receiver, body string) (SendResult, error) {
	if !db.ValidUserID(sender) || !db.ValidUserID(receiver) || sender == receiver {
		return SendResult{}, ErrInvalidKey
	}
	return c.Send(ctx, db.DirectKey(sender, receiver), sender, body)
}

// SendStream posts body to a stream's chat.
func (c *Coordinator) SendStream(ctx context.Context, streamID, sender, body string) (SendResult, error) {
	return c.Send(ctx, db.StreamKey(streamID), sender, body)
}

// Send stores a message in the conversation identified by key.
//
// Behavior:
//   - Direct messages need either party to be premium (checked before writing).
//   - Stream chat needs an active stream; premium-only streams need a premium sender.
//   - Empty or oversized bodies are rejected, not stored.
//   - A storage failure wraps ErrRetryable; the caller still holds the body.
//   - The stored message is published on the feed after the write.
func (c *Coordinator) Send(ctx context.Context, key, sender, body string) (SendResult, error) {
	if reason := CheckBody(body); reason != "" {
		return rejected(reason), nil
	}

	m := db.Message{ConversationKey: key, SenderID: sender, Body: body}
	kind := "direct"

	if lo, hi, ok := db.ParseDirectKey(key); ok {
		receiver, err := partnerOf(sender, lo, hi)
		if err != nil {
			return SendResult{}, err
		}
		if !c.gate.CanMessage(ctx, sender, receiver) {
			return rejected(ReasonPremiumRequired), nil
		}
		m.ReceiverID = receiver
	} else if streamID, ok := db.ParseStreamKey(key); ok {
		s, err := c.stream(ctx, streamID)
		if err != nil {
			return SendResult{}, err
		}
		if !s.IsActive {
			return rejected(ReasonStreamEnded), nil
		}
		if s.PremiumOnly && s.StreamerID != sender && !c.gate.IsPremium(ctx, sender) {
			return rejected(ReasonPremiumRequired), nil
		}
		m.StreamID = streamID
		kind = "stream"
	} else {
		return SendResult{}, ErrInvalidKey
	}

	if err := c.messages.Insert(ctx, &m); err != nil {
		c.log.Error("message insert failed", "conversation", key, "sender", sender, "err", err)
		return SendResult{}, svcErr.Retryable("send message", err)
	}
	metrics.MessagesSentTotal.WithLabelValues(kind).Inc()

	c.publish(ctx, feed.Insert, key, m)
	if m.ReceiverID != "" {
		c.publish(ctx, feed.Insert, InboxKey(m.SenderID), m)
		c.publish(ctx, feed.Insert, InboxKey(m.ReceiverID), m)
	}
	return SendResult{Message: &m}, nil
}

// Open opens a live view of key for viewer. Opening a direct conversation
// also marks the partner's messages read in the background; View.ReadDone
// reports when that finished.
func (c *Coordinator) Open(ctx context.Context, viewer, key string, listener Listener) (*View, error) {
	partner := ""
	if lo, hi, ok := db.ParseDirectKey(key); ok {
		p, err := partnerOf(viewer, lo, hi)
		if err != nil {
			return nil, err
		}
		partner = p
	} else if streamID, ok := db.ParseStreamKey(key); ok {
		s, err := c.stream(ctx, streamID)
		if err != nil {
			return nil, err
		}
		if s.PremiumOnly && s.StreamerID != viewer && !c.gate.IsPremium(ctx, viewer) {
			return nil, ErrPremiumRequired
		}
	} else {
		return nil, ErrInvalidKey
	}

	submit := func(ctx context.Context, body string) (SendResult, error) {
		return c.Send(ctx, key, viewer, body)
	}
	v, err := openView(ctx, key, viewer, c.messages, c.feed, listener, submit, c.log)
	if err != nil {
		return nil, err
	}
	if partner != "" {
		v.readDone = c.markReadAsync(ctx, viewer, partner)
	}
	return v, nil
}

// MarkRead flags every unread message from partner to reader as read and
// publishes the updated rows. It returns how many messages changed.
func (c *Coordinator) MarkRead(ctx context.Context, reader, partner string) (int, error) {
	updated, err := c.messages.MarkRead(ctx, reader, partner)
	if err != nil {
		return 0, svcErr.Retryable("mark read", err)
	}
	if len(updated) == 0 {
		return 0, nil
	}

	c.publish(ctx, feed.Update, db.DirectKey(reader, partner), updated)
	c.publish(ctx, feed.Update, InboxKey(reader), updated)
	return len(updated), nil
}

// markReadAsync runs MarkRead without blocking the caller and outliving its
// cancellation, bounded by markReadTimeout.
func (c *Coordinator) markReadAsync(ctx context.Context, reader, partner string) <-chan struct{} {
	done := make(chan struct{})
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(bg, c.markReadTimeout)
		defer cancel()
		if _, err := c.MarkRead(ctx, reader, partner); err != nil {
			c.log.Warn("background mark read failed", "reader", reader, "partner", partner, "err", err)
		}
	}()
	return done
}

// Conversations lists userID's direct conversations with unread counts.
func (c *Coordinator) Conversations(ctx context.Context, userID string) ([]repository.ConversationSummary, error) {
	out, err := c.messages.Conversations(ctx, userID)
	if err != nil {
		return nil, svcErr.Retryable("list conversations", err)
	}
	return out, nil
}

// CountUnread counts unread messages from partner to reader.
func (c *Coordinator) CountUnread(ctx context.Context, reader, partner string) (int64, error) {
	n, err := c.messages.CountUnread(ctx, reader, partner)
	if err != nil {
		return 0, svcErr.Retryable("count unread", err)
	}
	return n, nil
}

func (c *Coordinator) stream(ctx context.Context, id string) (*db.Stream, error) {
	s, err := c.streams.Get(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrStreamNotFound
	case err != nil:
		return nil, svcErr.Retryable("load stream", err)
	}
	return s, nil
}

// publish notifies the feed after a committed write. The write already
// happened, so a feed failure is logged and not returned.
func (c *Coordinator) publish(ctx context.Context, op feed.Op, key string, payload any) {
	ev, err := feed.NewEvent(feed.TableMessages, op, key, payload)
	if err == nil {
		err = c.feed.Publish(context.WithoutCancel(ctx), ev)
	}
	if err != nil {
		c.log.Warn("feed publish failed", "key", key, "op", op, "err", err)
	}
}

func partnerOf(user, lo, hi string) (string, error) {
	switch user {
	case lo:
		return hi, nil
	case hi:
		return lo, nil
	default:
		return "", ErrNotParticipant
	}
}
