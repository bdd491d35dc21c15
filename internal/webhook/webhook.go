// internal/webhook/webhook.go
package webhook

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"assignment-service/internal/assignment/statemachine"
	"assignment-service/internal/common/errors"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/storage"
)

// Message is one inbound delivery from the messaging provider. The
// provider may redeliver the same MessageID on retries.
type Message struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	Text      string `json:"text"`
}

// Outcome reports what the adapter did with a message.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Result is returned to the provider; Detail carries the user-facing
// reply text for failed or ignored messages.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

// Responder is the slice of the state machine the adapter drives.
type Responder interface {
	Accept(ctx context.Context, candidateID, actingUserID string) (*statemachine.AcceptResult, error)
	Reject(ctx context.Context, candidateID, actingUserID string) error
}

// Adapter turns free-text replies into accept/reject calls. A phone
// number resolves to a developer, the developer to their single
// actionable candidate. Redelivered messages are detected by message id
// and acknowledged without re-running the transition.
type Adapter struct {
	store     storage.Store
	responder Responder
	redis     *redis.Client
	dedupTTL  time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewAdapter(store storage.Store, responder Responder, redisClient *redis.Client, dedupTTL time.Duration, log logger.Logger) *Adapter {
	return &Adapter{
		store:     store,
		responder: responder,
		redis:     redisClient,
		dedupTTL:  dedupTTL,
		logger:    log.WithFields(map[string]interface{}{"component": "webhook-adapter"}),
		now:       time.Now,
	}
}

// Handle processes one inbound message. Unresolvable senders and
// unparseable commands are ignored, not errored: the provider should
// not retry them.
func (a *Adapter) Handle(ctx context.Context, msg *Message) (*Result, error) {
	if msg.MessageID == "" || msg.From == "" {
		return &Result{Outcome: OutcomeIgnored, Detail: "missing message id or sender"}, nil
	}

	fresh, err := a.markSeen(ctx, msg.MessageID)
	if err != nil {
		a.logger.Warn("dedup check failed, processing anyway", map[string]interface{}{
			"message_id": msg.MessageID,
			"error":      err.Error(),
		})
	} else if !fresh {
		a.logger.Debug("duplicate delivery acknowledged", map[string]interface{}{
			"message_id": msg.MessageID,
		})
		return &Result{Outcome: OutcomeDuplicate}, nil
	}

	intent := parseIntent(msg.Text)
	if intent == intentUnknown {
		return &Result{Outcome: OutcomeIgnored, Detail: "reply ACCEPT or REJECT"}, nil
	}

	dev, err := a.store.GetDeveloperByPhone(ctx, msg.From)
	if err != nil {
		if errors.IsNotFound(err) {
			return &Result{Outcome: OutcomeIgnored, Detail: "unknown sender"}, nil
		}
		a.clearSeen(ctx, msg.MessageID)
		return nil, err
	}

	cand, err := a.store.FindActionableCandidateByDeveloper(ctx, dev.ID, a.now().UTC())
	if err != nil {
		if errors.IsNotFound(err) {
			return &Result{Outcome: OutcomeIgnored, Detail: "no open assignment to respond to"}, nil
		}
		a.clearSeen(ctx, msg.MessageID)
		return nil, err
	}

	switch intent {
	case intentAccept:
		if _, err := a.responder.Accept(ctx, cand.ID, dev.OwnerUserID); err != nil {
			return a.transitionFailure(ctx, msg, cand.ID, err)
		}
		return &Result{Outcome: OutcomeAccepted}, nil
	default:
		if err := a.responder.Reject(ctx, cand.ID, dev.OwnerUserID); err != nil {
			return a.transitionFailure(ctx, msg, cand.ID, err)
		}
		return &Result{Outcome: OutcomeRejected}, nil
	}
}

// markSeen returns false when the message id was already processed.
func (a *Adapter) markSeen(ctx context.Context, messageID string) (bool, error) {
	if a.redis == nil {
		return true, nil
	}
	return a.redis.SetNX(ctx, "webhook:msg:"+messageID, "1", a.dedupTTL).Result()
}

// clearSeen releases the dedup claim when processing fails with an
// error the provider is expected to retry. Without this a redelivery
// would be swallowed as a duplicate and the reply lost.
func (a *Adapter) clearSeen(ctx context.Context, messageID string) {
	if a.redis == nil {
		return
	}
	if err := a.redis.Del(ctx, "webhook:msg:"+messageID).Err(); err != nil {
		a.logger.Warn("dedup release failed, redelivery may be dropped", map[string]interface{}{
			"message_id": messageID,
			"error":      err.Error(),
		})
	}
}

// transitionFailure maps expected state-machine errors to acknowledged
// outcomes so the provider does not retry; everything else releases the
// dedup claim and propagates so the redelivery gets a clean run.
func (a *Adapter) transitionFailure(ctx context.Context, msg *Message, candidateID string, err error) (*Result, error) {
	switch {
	case errors.IsAlreadyResponded(err):
		return &Result{Outcome: OutcomeFailed, Detail: "already responded"}, nil
	case errors.IsExpired(err):
		return &Result{Outcome: OutcomeFailed, Detail: "this invite has expired"}, nil
	case errors.IsNotFound(err):
		return &Result{Outcome: OutcomeIgnored, Detail: "no open assignment to respond to"}, nil
	}
	a.logger.Error("webhook transition failed", map[string]interface{}{
		"message_id":   msg.MessageID,
		"candidate_id": candidateID,
		"error":        err.Error(),
	})
	a.clearSeen(ctx, msg.MessageID)
	return nil, err
}

type intent int

const (
	intentUnknown intent = iota
	intentAccept
	intentReject
)

// parseIntent reads the first word of the reply. ACCEPT/YES/OK and
// REJECT/NO/DECLINE are recognized, case-insensitively.
func parseIntent(text string) intent {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return intentUnknown
	}
	switch strings.ToUpper(fields[0]) {
	case "ACCEPT", "YES", "Y", "OK":
		return intentAccept
	case "REJECT", "NO", "N", "DECLINE":
		return intentReject
	}
	return intentUnknown
}
