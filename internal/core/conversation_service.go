package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AlvinLimo/GrowFrika/internal/errs"
	"github.com/AlvinLimo/GrowFrika/internal/ml"
	"github.com/AlvinLimo/GrowFrika/internal/store"
)

// ConversationStore is the persistence surface the lifecycle service needs.
// *store.SQLiteStore implements it; tests substitute fakes.
type ConversationStore interface {
	CreateConversation(userID, title string) (*store.Conversation, error)
	GetConversation(convoID, userID string) (*store.Conversation, error)
	ListConversations(userID string, limit, offset int) ([]store.Conversation, int, error)
	ArchiveConversation(convoID, userID string) error
	DeleteConversation(convoID, userID string) error
	TouchConversation(convoID string, at time.Time) error

	CreateMessage(msg *store.Message) error
	GetMessagesByConversation(convoID string) ([]store.Message, error)
	GetLastNMessages(convoID string, n int) ([]store.Message, error)
	GetSystemSeed(convoID string) (*store.Message, error)
	DeleteMessage(messageID string) error
}

// ConversationService owns the conversation lifecycle: creation from a first
// classification, chat turns, listing, archival and deletion.
type ConversationService struct {
	store      ConversationStore
	classifier ml.Classifier
	responder  ml.ChatResponder
	logger     *zap.Logger

	// Chat turns on one conversation are serialized; turns on different
	// conversations run concurrently.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewConversationService(st ConversationStore, classifier ml.Classifier, responder ml.ChatResponder, logger *zap.Logger) *ConversationService {
	return &ConversationService{
		store:      st,
		classifier: classifier,
		responder:  responder,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *ConversationService) convoLock(convoID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[convoID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[convoID] = m
	}
	return m
}

func (s *ConversationService) dropConvoLock(convoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, convoID)
}

// ClassifyOutcome is what a successful image upload produces: the new
// conversation bootstrapped with its first two visible messages.
type ClassifyOutcome struct {
	Conversation     *store.Conversation
	UserMessage      *store.Message
	AssistantMessage *store.Message
	Prediction       *ml.ClassificationResult
}

// ClassifyAndCreate runs the classifier on an uploaded image and creates a
// conversation from the outcome. Any classification outcome, invalid images
// included, creates a conversation; only an adapter failure leaves no rows
// behind. The caller owns imagePath cleanup.
func (s *ConversationService) ClassifyAndCreate(ctx context.Context, userID, imagePath, imageURL string) (*ClassifyOutcome, error) {
	result, err := s.classifier.Classify(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	convo, err := s.store.CreateConversation(userID, titleFor(result))
	if err != nil {
		return nil, err
	}

	seed := &store.Message{
		ConvoID: convo.ID,
		Role:    store.RoleSystem,
		Content: seedFor(result),
	}
	if err := s.store.CreateMessage(seed); err != nil {
		return nil, err
	}

	userMsg := &store.Message{
		ConvoID:   convo.ID,
		Role:      store.RoleUser,
		Content:   "Uploaded a coffee leaf photo for diagnosis.",
		ImageURLs: []string{imageURL},
		CreatedAt: seed.CreatedAt.Add(time.Millisecond),
	}
	if err := s.store.CreateMessage(userMsg); err != nil {
		return nil, err
	}

	assistantMsg := &store.Message{
		ConvoID:   convo.ID,
		Role:      store.RoleAssistant,
		Content:   result.Reply(),
		Metadata:  classificationMetadata(result),
		CreatedAt: userMsg.CreatedAt.Add(time.Millisecond),
	}
	if err := s.store.CreateMessage(assistantMsg); err != nil {
		return nil, err
	}

	if err := s.store.TouchConversation(convo.ID, assistantMsg.CreatedAt); err != nil {
		return nil, err
	}
	convo.LastMessageAt = assistantMsg.CreatedAt

	s.logger.Info("conversation created from classification",
		zap.String("convo_id", convo.ID),
		zap.String("user_id", userID),
		zap.String("status", result.Status),
		zap.String("class", result.PredictedClass),
	)

	return &ClassifyOutcome{
		Conversation:     convo,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Prediction:       result,
	}, nil
}

func classificationMetadata(result *ml.ClassificationResult) map[string]any {
	meta := map[string]any{
		"status":     result.Status,
		"confidence": result.Confidence,
	}
	if result.PredictedClass != "" {
		meta["predicted_class"] = result.PredictedClass
	}
	if len(result.Probabilities) > 0 {
		meta["all_probabilities"] = result.Probabilities
	}
	if result.Warning != "" {
		meta["warning"] = result.Warning
	}
	return meta
}

// ChatOutcome is the result of one chat turn.
type ChatOutcome struct {
	Conversation     *store.Conversation
	UserMessage      *store.Message
	AssistantMessage *store.Message
}

// SendMessage appends one chat turn: the user's text and the model's reply.
// The conversation must exist and belong to the user. On adapter failure the
// already-written user message is rolled back so the turn leaves no trace.
func (s *ConversationService) SendMessage(ctx context.Context, userID, convoID, text string) (*ChatOutcome, error) {
	if convoID == "" || text == "" {
		return nil, errs.ErrValidation
	}

	lock := s.convoLock(convoID)
	lock.Lock()
	defer lock.Unlock()

	convo, err := s.store.GetConversation(convoID, userID)
	if err != nil {
		return nil, err
	}

	// Derive the rolling context before writing the user message so the new
	// text appears exactly once, as the final entry.
	seedContent := defaultPersona
	if seed, err := s.store.GetSystemSeed(convoID); err == nil {
		seedContent = seed.Content
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	prior, err := s.store.GetLastNMessages(convoID, maxContextEntries-2)
	if err != nil {
		return nil, err
	}
	history := buildRollingContext(seedContent, prior, text)

	userMsg := &store.Message{
		ConvoID: convoID,
		Role:    store.RoleUser,
		Content: text,
	}
	if err := s.store.CreateMessage(userMsg); err != nil {
		return nil, err
	}

	reply, err := s.responder.Respond(ctx, history)
	if err != nil {
		if delErr := s.store.DeleteMessage(userMsg.ID); delErr != nil {
			s.logger.Warn("failed to roll back user message after adapter failure",
				zap.String("message_id", userMsg.ID), zap.Error(delErr))
		}
		return nil, err
	}

	assistantMsg := &store.Message{
		ConvoID:   convoID,
		Role:      store.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	if !assistantMsg.CreatedAt.After(userMsg.CreatedAt) {
		assistantMsg.CreatedAt = userMsg.CreatedAt.Add(time.Millisecond)
	}
	if err := s.store.CreateMessage(assistantMsg); err != nil {
		return nil, err
	}

	if err := s.store.TouchConversation(convoID, assistantMsg.CreatedAt); err != nil {
		return nil, err
	}
	convo.LastMessageAt = assistantMsg.CreatedAt

	return &ChatOutcome{
		Conversation:     convo,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// ListConversations returns the user's active conversations, newest activity
// first, with preview messages and the total for pagination.
func (s *ConversationService) ListConversations(userID string, limit, offset int) ([]store.Conversation, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListConversations(userID, limit, offset)
}

// GetConversation returns a conversation with its full transcript.
func (s *ConversationService) GetConversation(userID, convoID string) (*store.Conversation, []store.Message, error) {
	convo, err := s.store.GetConversation(convoID, userID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.store.GetMessagesByConversation(convoID)
	if err != nil {
		return nil, nil, err
	}
	return convo, messages, nil
}

// ArchiveConversation hides a conversation from listings without touching
// its messages.
func (s *ConversationService) ArchiveConversation(userID, convoID string) error {
	return s.store.ArchiveConversation(convoID, userID)
}

// DeleteConversation removes a conversation and, via cascade, all of its
// messages. Later turns against the id behave as conversation-not-found.
func (s *ConversationService) DeleteConversation(userID, convoID string) error {
	if err := s.store.DeleteConversation(convoID, userID); err != nil {
		return err
	}
	s.dropConvoLock(convoID)
	return nil
}
