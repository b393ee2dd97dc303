package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigglechat/giggle/internal/database"
	"github.com/gigglechat/giggle/internal/logger"
	"github.com/gigglechat/giggle/internal/models"
	"github.com/gigglechat/giggle/internal/moderation"
)

var log = logger.New("chat")

// blockThreshold is the strike count at which the receiver
// automatically blocks the offender.
const blockThreshold = 2

// replyTimeout bounds the assistant's synchronous reply generation.
const replyTimeout = 15 * time.Second

// Publisher receives authoritative change events produced by the
// engine. tempID, when non-nil, names the optimistic placeholder the
// durable message replaces.
type Publisher interface {
	PublishMessage(msg *models.Message, tempID uuid.UUID)
}

// Engine owns a message's lifecycle from submission to a terminal
// state. All mutation for one conversation is serialized through a
// per-conversation lock so a concurrent submit and reconcile cannot
// interleave a partial write.
type Engine struct {
	store     database.Store
	transport Transport
	pipeline  *moderation.Pipeline
	strikes   *StrikeLedger
	replies   moderation.ReplyGenerator
	publisher Publisher

	assistantID      uuid.UUID
	assistantPersona string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Store            database.Store
	Transport        Transport
	Pipeline         *moderation.Pipeline
	Strikes          *StrikeLedger
	Replies          moderation.ReplyGenerator
	Publisher        Publisher
	AssistantID      uuid.UUID
	AssistantPersona string
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		store:            cfg.Store,
		transport:        cfg.Transport,
		pipeline:         cfg.Pipeline,
		strikes:          cfg.Strikes,
		replies:          cfg.Replies,
		publisher:        cfg.Publisher,
		assistantID:      cfg.AssistantID,
		assistantPersona: cfg.AssistantPersona,
		locks:            make(map[string]*sync.Mutex),
	}
	if e.strikes == nil {
		e.strikes = NewStrikeLedger()
	}
	if e.assistantPersona == "" {
		e.assistantPersona = "Giggle AI"
	}
	return e
}

// Strikes exposes the ledger so the relationship layer can reset a
// pair on unblock.
func (e *Engine) Strikes() *StrikeLedger {
	return e.strikes
}

func (e *Engine) conversationLock(conversationID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[conversationID] = lock
	}
	return lock
}

// Submit runs a composed message through validation, the block gate,
// moderation and strike escalation, then hands the vetted message to
// the transport. The returned message is the durable copy when the
// send succeeded, or the local quarantined copy when policy withheld
// it. The signal tells the sender which.
func (e *Engine) Submit(ctx context.Context, senderID, receiverID uuid.UUID, content models.MessageContent) (*models.Message, Signal, error) {
	if err := validateContent(content); err != nil {
		return nil, Signal{}, err
	}

	conversationID := models.ConversationID(senderID, receiverID)
	lock := e.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	msg := &models.Message{
		ID:             uuid.New(), // temporary id until the transport acknowledges
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Kind:           content.Kind,
		Text:           content.Text,
		ImageURL:       content.ImageURL,
		CallURL:        content.CallURL,
		CreatedAt:      time.Now().UTC(),
		Status:         models.StatusPending,
	}

	// Blocked senders never reach the classifier.
	blocked, err := e.store.IsBlocked(receiverID, senderID)
	if err != nil {
		return nil, Signal{}, err
	}
	if blocked {
		msg.Status = models.StatusQuarantined
		return msg, Signal{Kind: SignalBlocked, Reason: "receiver has blocked you"}, nil
	}

	if content.Kind == models.KindText && !e.isAssistantConversation(senderID, receiverID) {
		result := e.pipeline.Classify(ctx, content.Text)
		msg.Moderation = &result

		if result.Flagged {
			return e.escalate(ctx, msg)
		}
	}

	msg.Status = models.StatusSent
	durable, err := e.transport.Send(ctx, msg)
	if err != nil {
		// Roll the optimistic record back to removed, not quarantined.
		// The caller may retry by resubmitting the same content.
		log.Error("transport send failed for %s -> %s: %v", senderID, receiverID, err)
		return nil, Signal{Kind: SignalSendFailed, Reason: "message could not be sent"}, nil
	}

	e.publish(durable, msg.ID)

	if receiverID == e.assistantID {
		if reply := e.assistantReply(ctx, senderID, content.Text); reply != nil {
			e.publish(reply, uuid.Nil)
		}
	}

	return durable, Signal{}, nil
}

// escalate handles a flagged message: count the strike, quarantine the
// message as a tombstone, and auto-block at the threshold.
func (e *Engine) escalate(ctx context.Context, msg *models.Message) (*models.Message, Signal, error) {
	count := e.strikes.Record(msg.SenderID, msg.ReceiverID)
	msg.Status = models.StatusQuarantined

	// The tombstone persists so the offender sees it sent while the
	// receiver only ever sees a placeholder. A persistence failure does
	// not change the policy outcome.
	durable, err := e.transport.Send(ctx, msg)
	if err != nil {
		log.Error("failed to persist quarantine tombstone: %v", err)
		durable = msg
	} else {
		e.publish(durable, msg.ID)
	}

	if count >= blockThreshold {
		if _, err := e.store.CreateBlock(msg.ReceiverID, msg.SenderID); err != nil {
			log.Error("failed to create auto-block edge: %v", err)
		}
		log.Info("strike %d for %s -> %s, auto-blocking", count, msg.SenderID, msg.ReceiverID)
		return durable, Signal{Kind: SignalBlocked, Reason: "multiple toxic messages detected"}, nil
	}

	log.Info("strike %d for %s -> %s, warning issued", count, msg.SenderID, msg.ReceiverID)
	return durable, Signal{Kind: SignalWarning, Reason: "message withheld for toxic content"}, nil
}

// assistantReply synchronously asks the reply generator for the
// assistant's answer. A generator failure yields a fixed fallback
// reply, never an error.
func (e *Engine) assistantReply(ctx context.Context, userID uuid.UUID, userText string) *models.Message {
	replyCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	text := moderation.FallbackReply
	if e.replies != nil {
		generated, err := e.replies.Reply(replyCtx, userText, e.assistantPersona)
		if err != nil {
			log.Warn("reply generator unavailable, using fallback: %v", err)
		} else {
			text = generated
		}
	}

	reply := &models.Message{
		ConversationID: models.ConversationID(userID, e.assistantID),
		SenderID:       e.assistantID,
		ReceiverID:     userID,
		Kind:           models.KindText,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
		Status:         models.StatusSent,
	}

	durable, err := e.transport.Send(ctx, reply)
	if err != nil {
		log.Error("failed to persist assistant reply: %v", err)
		return nil
	}
	return durable
}

// MarkDelivered transitions a sent message to delivered.
func (e *Engine) MarkDelivered(messageID uuid.UUID) (*models.Message, error) {
	return e.transition(messageID, models.StatusDelivered, map[models.MessageStatus]bool{
		models.StatusSent: true,
	})
}

// MarkRead transitions a sent or delivered message to read.
func (e *Engine) MarkRead(messageID uuid.UUID) (*models.Message, error) {
	return e.transition(messageID, models.StatusRead, map[models.MessageStatus]bool{
		models.StatusSent:      true,
		models.StatusDelivered: true,
	})
}

func (e *Engine) transition(messageID uuid.UUID, to models.MessageStatus, from map[models.MessageStatus]bool) (*models.Message, error) {
	msg, err := e.store.GetMessageByID(messageID)
	if err != nil {
		return nil, err
	}

	lock := e.conversationLock(msg.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	if !from[msg.Status] {
		// Already terminal or already past the target state; idempotent.
		return msg, nil
	}

	if err := e.store.UpdateMessageStatus(messageID, to); err != nil {
		return nil, err
	}
	msg.Status = to
	e.publish(msg, uuid.Nil)
	return msg, nil
}

// React toggles the user's emoji reaction on a message. A participant
// holds at most one reaction per message; setting the same value again
// clears it.
func (e *Engine) React(userID, messageID uuid.UUID, emoji string) (*models.Message, error) {
	msg, err := e.store.GetMessageByID(messageID)
	if err != nil {
		return nil, err
	}

	lock := e.conversationLock(msg.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	reactions := make(map[string]string, len(msg.Reactions)+1)
	for k, v := range msg.Reactions {
		reactions[k] = v
	}

	key := userID.String()
	if reactions[key] == emoji {
		delete(reactions, key)
	} else {
		reactions[key] = emoji
	}

	if err := e.store.UpdateMessageReactions(messageID, reactions); err != nil {
		return nil, err
	}
	msg.Reactions = reactions
	e.publish(msg, uuid.Nil)
	return msg, nil
}

func (e *Engine) publish(msg *models.Message, tempID uuid.UUID) {
	if e.publisher != nil {
		e.publisher.PublishMessage(msg, tempID)
	}
}

func (e *Engine) isAssistantConversation(senderID, receiverID uuid.UUID) bool {
	if e.assistantID == uuid.Nil {
		return false
	}
	return senderID == e.assistantID || receiverID == e.assistantID
}

func validateContent(content models.MessageContent) error {
	switch content.Kind {
	case models.KindText:
		if strings.TrimSpace(content.Text) == "" {
			return ErrEmptyContent
		}
	case models.KindImage:
		if content.ImageURL == "" {
			return ErrEmptyContent
		}
	case models.KindCallInvite:
		if content.CallURL == "" {
			return ErrEmptyContent
		}
	default:
		return ErrUnknownKind
	}
	return nil
}
