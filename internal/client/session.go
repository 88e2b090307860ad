package client

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// State of a chat screen.
type State int

const (
	StateNoConversation State = iota
	StateLoading
	StateActive
	StateError
)

// ErrNoConversation is returned when text is submitted before any image has
// bootstrapped a conversation.
var ErrNoConversation = errors.New("no active conversation")

// ErrBusy is returned when a submission arrives while another is in flight.
var ErrBusy = errors.New("a submission is already in flight")

// Entry is one rendered message. Optimistic entries carry a client-generated
// correlation id until the server-confirmed messages replace them; entries
// are reconciled by that id, never by list position.
type Entry struct {
	CorrelationID string // empty once server-confirmed
	Message       Message
	Pending       bool   // assistant placeholder awaiting the server
	Failed        bool   // assistant-styled error bubble
	LocalImageRef string // local object reference shown until the canonical URL arrives
}

// Session is the per-screen reconciliation state machine. It is not safe for
// concurrent use; a screen drives it from one goroutine.
type Session struct {
	backend Backend

	state   State
	convoID string
	title   string
	entries []Entry
	banner  string
}

func NewSession(backend Backend) *Session {
	return &Session{backend: backend, state: StateNoConversation}
}

func (s *Session) State() State           { return s.state }
func (s *Session) ConversationID() string { return s.convoID }
func (s *Session) Title() string          { return s.title }
func (s *Session) Banner() string         { return s.banner }
func (s *Session) DismissBanner()         { s.banner = "" }

// Entries returns the rendered message list.
func (s *Session) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Reset returns the screen to the no-conversation state. Text input stays
// blocked until an image is submitted.
func (s *Session) Reset() {
	s.state = StateNoConversation
	s.convoID = ""
	s.title = ""
	s.entries = nil
	s.banner = ""
}

// Load replaces local state with the server transcript for a conversation id
// taken from the route.
func (s *Session) Load(ctx context.Context, convoID string) error {
	detail, err := s.backend.GetConversation(ctx, convoID)
	if err != nil {
		s.state = StateError
		s.banner = err.Error()
		return err
	}

	s.convoID = detail.Conversation.ConvoID
	s.title = detail.Conversation.Title
	s.entries = make([]Entry, 0, len(detail.Conversation.Messages))
	for _, msg := range detail.Conversation.Messages {
		s.entries = append(s.entries, Entry{Message: msg})
	}
	s.state = StateActive
	s.banner = ""
	return nil
}

// SubmitImage optimistically renders the upload and a loading placeholder,
// classifies the image server-side, and reconciles. It returns the
// server-assigned conversation id for client-side navigation.
func (s *Session) SubmitImage(ctx context.Context, imagePath string) (string, error) {
	if s.state == StateLoading {
		return "", ErrBusy
	}

	corrID := uuid.NewString()
	s.entries = append(s.entries,
		Entry{
			CorrelationID: corrID,
			Message: Message{
				Role:      "user",
				Content:   "Uploaded a coffee leaf photo for diagnosis.",
				CreatedAt: time.Now(),
			},
			LocalImageRef: imagePath,
		},
		Entry{
			CorrelationID: corrID,
			Message:       Message{Role: "assistant"},
			Pending:       true,
		},
	)
	s.state = StateLoading

	resp, err := s.backend.Predict(ctx, imagePath)
	if err != nil {
		s.failPending(corrID, err)
		return "", err
	}

	s.spliceConfirmed(corrID, resp.UserMessage, resp.AssistantMessage)
	s.convoID = resp.Conversation.ConvoID
	s.title = resp.Conversation.Title
	s.state = StateActive
	return s.convoID, nil
}

// SubmitText sends a chat turn on the active conversation with the same
// optimistic render / splice-on-success / fail-in-place pattern.
func (s *Session) SubmitText(ctx context.Context, text string) error {
	if s.state == StateLoading {
		return ErrBusy
	}
	if s.convoID == "" {
		return ErrNoConversation
	}

	corrID := uuid.NewString()
	s.entries = append(s.entries,
		Entry{
			CorrelationID: corrID,
			Message:       Message{Role: "user", Content: text, CreatedAt: time.Now()},
		},
		Entry{
			CorrelationID: corrID,
			Message:       Message{Role: "assistant"},
			Pending:       true,
		},
	)
	s.state = StateLoading

	resp, err := s.backend.Chat(ctx, s.convoID, text)
	if err != nil {
		s.failPending(corrID, err)
		return err
	}

	s.spliceConfirmed(corrID, resp.UserMessage, resp.AssistantMessage)
	s.state = StateActive
	return nil
}

// spliceConfirmed removes the optimistic pair and inserts the two
// server-confirmed messages in its place.
func (s *Session) spliceConfirmed(corrID string, userMsg, assistantMsg Message) {
	kept := s.entries[:0]
	inserted := false
	for _, e := range s.entries {
		if e.CorrelationID == corrID {
			if !inserted {
				kept = append(kept, Entry{Message: userMsg}, Entry{Message: assistantMsg})
				inserted = true
			}
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	s.banner = ""
}

// failPending turns the loading placeholder into an error bubble and leaves
// the optimistic user message in place so the text is not lost.
func (s *Session) failPending(corrID string, err error) {
	for i := range s.entries {
		if s.entries[i].CorrelationID == corrID && s.entries[i].Pending {
			s.entries[i].Pending = false
			s.entries[i].Failed = true
			s.entries[i].Message.Content = "Something went wrong. Please try again."
		}
	}
	s.state = StateError
	s.banner = err.Error()
}
