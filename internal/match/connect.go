package match

import (
	"context"
	"log/slog"

	"github.com/oggyb/muzz-connect/internal/messaging"
	"github.com/oggyb/muzz-connect/internal/metrics"
)

// Sender delivers direct messages; see messaging.Coordinator.
type Sender interface {
	SendDirect(ctx context.Context, sender, receiver, body string) (messaging.SendResult, error)
}

// ConnectResult is the like outcome plus the opener delivery. Like is zero
// when the request was rejected before liking.
type ConnectResult struct {
	Like Result
	Send messaging.SendResult
}

// Connector implements the "message" action on a discovery card: like the
// candidate and open the conversation with a first message.
type Connector struct {
	ledger *Ledger
	gate   messaging.Gate
	sender Sender
	log    *slog.Logger
}

func NewConnector(ledger *Ledger, gate messaging.Gate, sender Sender, log *slog.Logger) *Connector {
	return &Connector{ledger: ledger, gate: gate, sender: sender, log: log}
}

// Connect likes target on behalf of actor and sends opener.
//
// Behavior:
//   - Rejected as premium_required before anything is written when neither
//     side may message; a bad opener is rejected the same way.
//   - An existing like is kept and reported as AlreadyLiked.
//   - The opener goes through the normal direct message path.
func (c *Connector) Connect(ctx context.Context, actor, target, opener string) (ConnectResult, error) {
	if actor == "" || target == "" {
		return ConnectResult{}, ErrMissingUser
	}
	if actor == target {
		return ConnectResult{}, ErrSelfLike
	}
	if reason := messaging.CheckBody(opener); reason != "" {
		metrics.SendsRejectedTotal.WithLabelValues(string(reason)).Inc()
		return ConnectResult{Send: messaging.SendResult{Reason: reason}}, nil
	}
	if !c.gate.CanMessage(ctx, actor, target) {
		metrics.SendsRejectedTotal.WithLabelValues(string(messaging.ReasonPremiumRequired)).Inc()
		return ConnectResult{Send: messaging.SendResult{Reason: messaging.ReasonPremiumRequired}}, nil
	}

	like, err := c.ledger.Like(ctx, actor, target)
	if err != nil {
		return ConnectResult{}, err
	}

	sent, err := c.sender.SendDirect(ctx, actor, target, opener)
	if err != nil {
		c.log.Warn("opener not sent", "actor", actor, "target", target, "like", like, "err", err)
		return ConnectResult{Like: like}, err
	}
	return ConnectResult{Like: like, Send: sent}, nil
}
