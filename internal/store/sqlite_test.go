package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AlvinLimo/GrowFrika/internal/errs"
	"github.com/AlvinLimo/GrowFrika/internal/migrate"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, migrate.Up(context.Background(), dsn))
	st, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func createTestUser(t *testing.T, st *SQLiteStore, username, email string) *User {
	t.Helper()
	hash := "$2a$10$fakehashfortests"
	user := &User{Username: username, Email: email, PasswordHash: &hash, HasPassword: true}
	require.NoError(t, st.CreateUser(user))
	return user
}

func TestCreateUser_UniqueConstraints(t *testing.T) {
	st := newTestStore(t)
	createTestUser(t, st, "alice", "alice@example.com")

	err := st.CreateUser(&User{Username: "alice", Email: "other@example.com"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	err = st.CreateUser(&User{Username: "other", Email: "alice@example.com"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestGetUserByLogin(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")

	byEmail, err := st.GetUserByLogin("alice@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)

	byName, err := st.GetUserByLogin("alice")
	require.NoError(t, err)
	require.Equal(t, user.ID, byName.ID)

	_, err = st.GetUserByLogin("nobody")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateUser_RoundTripsNullableFields(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")

	googleID := "g-123"
	user.GoogleID = &googleID
	user.IsGoogleUser = true
	user.IsVerified = true
	user.VerificationToken = nil
	require.NoError(t, st.UpdateUser(user))

	got, err := st.GetUserByGoogleID("g-123")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.True(t, got.IsVerified)
	require.Nil(t, got.VerificationToken)
	require.NotNil(t, got.PasswordHash)

	require.ErrorIs(t, st.UpdateUser(&User{ID: "missing"}), errs.ErrNotFound)
}

func TestUsernameAndEmailTaken_ExcludesSelf(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")
	createTestUser(t, st, "bob", "bob@example.com")

	taken, err := st.UsernameTaken("alice", user.ID)
	require.NoError(t, err)
	require.False(t, taken)

	taken, err = st.UsernameTaken("bob", user.ID)
	require.NoError(t, err)
	require.True(t, taken)

	taken, err = st.EmailTaken("bob@example.com", user.ID)
	require.NoError(t, err)
	require.True(t, taken)
}

func TestConversationOwnership(t *testing.T) {
	st := newTestStore(t)
	owner := createTestUser(t, st, "alice", "alice@example.com")
	other := createTestUser(t, st, "bob", "bob@example.com")

	convo, err := st.CreateConversation(owner.ID, "rust Diagnosis")
	require.NoError(t, err)

	got, err := st.GetConversation(convo.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "rust Diagnosis", got.Title)

	// Someone else's conversation looks like a missing one.
	_, err = st.GetConversation(convo.ID, other.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, st.DeleteConversation(convo.ID, other.ID), errs.ErrNotFound)
	require.ErrorIs(t, st.ArchiveConversation(convo.ID, other.ID), errs.ErrNotFound)
}

func TestListConversations_OrderingArchivalAndPreview(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")

	base := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	var ids []string
	for i := 0; i < 3; i++ {
		convo, err := st.CreateConversation(user.ID, "rust Diagnosis")
		require.NoError(t, err)
		require.NoError(t, st.CreateMessage(&Message{
			ConvoID:   convo.ID,
			Role:      RoleAssistant,
			Content:   "reply",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
		require.NoError(t, st.TouchConversation(convo.ID, base.Add(time.Duration(i)*time.Minute)))
		ids = append(ids, convo.ID)
	}

	convos, total, err := st.ListConversations(user.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, convos, 3)
	// Newest activity first.
	require.Equal(t, ids[2], convos[0].ID)
	require.Equal(t, ids[0], convos[2].ID)
	require.NotNil(t, convos[0].LastMessage)
	require.Equal(t, "reply", convos[0].LastMessage.Content)

	// Archived conversations drop out of the listing and the total.
	require.NoError(t, st.ArchiveConversation(ids[2], user.ID))
	convos, total, err = st.ListConversations(user.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, ids[1], convos[0].ID)

	// Pagination.
	convos, total, err = st.ListConversations(user.ID, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, convos, 1)
	require.Equal(t, ids[0], convos[0].ID)
}

func TestTouchConversation_NeverMovesBackwards(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")
	convo, err := st.CreateConversation(user.ID, "rust Diagnosis")
	require.NoError(t, err)

	later := convo.LastMessageAt.Add(time.Hour)
	require.NoError(t, st.TouchConversation(convo.ID, later))
	require.NoError(t, st.TouchConversation(convo.ID, later.Add(-30*time.Minute)))

	got, err := st.GetConversation(convo.ID, user.ID)
	require.NoError(t, err)
	require.True(t, got.LastMessageAt.Equal(later))
}

func TestDeleteConversation_CascadesToMessages(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")
	convo, err := st.CreateConversation(user.ID, "rust Diagnosis")
	require.NoError(t, err)

	for _, role := range []string{RoleSystem, RoleUser, RoleAssistant} {
		require.NoError(t, st.CreateMessage(&Message{ConvoID: convo.ID, Role: role, Content: role}))
	}
	n, err := st.CountMessages(convo.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, st.DeleteConversation(convo.ID, user.ID))
	n, err = st.CountMessages(convo.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMessages_JSONFieldsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")
	convo, err := st.CreateConversation(user.ID, "rust Diagnosis")
	require.NoError(t, err)

	msg := &Message{
		ConvoID:   convo.ID,
		Role:      RoleAssistant,
		Content:   "Looks like rust.",
		ImageURLs: []string{"/uploads/leaf.jpg"},
		Metadata: map[string]any{
			"status":     "success",
			"confidence": 0.93,
		},
	}
	require.NoError(t, st.CreateMessage(msg))

	msgs, err := st.GetMessagesByConversation(convo.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, []string{"/uploads/leaf.jpg"}, msgs[0].ImageURLs)
	require.Equal(t, "success", msgs[0].Metadata["status"])
	require.Equal(t, 0.93, msgs[0].Metadata["confidence"])
}

func TestTranscriptExcludesSystemSeed(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")
	convo, err := st.CreateConversation(user.ID, "rust Diagnosis")
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.CreateMessage(&Message{ConvoID: convo.ID, Role: RoleSystem, Content: "seed", CreatedAt: base}))
	require.NoError(t, st.CreateMessage(&Message{ConvoID: convo.ID, Role: RoleUser, Content: "first", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, st.CreateMessage(&Message{ConvoID: convo.ID, Role: RoleAssistant, Content: "second", CreatedAt: base.Add(2 * time.Second)}))

	msgs, err := st.GetMessagesByConversation(convo.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "second", msgs[1].Content)

	newest, err := st.GetLastNMessages(convo.ID, 1)
	require.NoError(t, err)
	require.Len(t, newest, 1)
	require.Equal(t, "second", newest[0].Content)

	seed, err := st.GetSystemSeed(convo.ID)
	require.NoError(t, err)
	require.Equal(t, "seed", seed.Content)
}

func TestDeleteMessage(t *testing.T) {
	st := newTestStore(t)
	user := createTestUser(t, st, "alice", "alice@example.com")
	convo, err := st.CreateConversation(user.ID, "rust Diagnosis")
	require.NoError(t, err)

	msg := &Message{ConvoID: convo.ID, Role: RoleUser, Content: "oops"}
	require.NoError(t, st.CreateMessage(msg))
	require.NoError(t, st.DeleteMessage(msg.ID))
	require.ErrorIs(t, st.DeleteMessage(msg.ID), errs.ErrNotFound)
}
