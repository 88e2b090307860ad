package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AlvinLimo/GrowFrika/internal/auth"
	"github.com/AlvinLimo/GrowFrika/internal/config"
	"github.com/AlvinLimo/GrowFrika/internal/errs"
	"github.com/AlvinLimo/GrowFrika/internal/store"
)

func TestMain(m *testing.M) {
	config.AppConfig.JWTSecret = "test-secret"
	m.Run()
}

type fakeUserStore struct {
	users map[string]*store.User
}

var _ UserStore = (*fakeUserStore)(nil)

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*store.User{}}
}

func (f *fakeUserStore) CreateUser(user *store.User) error {
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return errs.ErrAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cpy := *user
	f.users[user.ID] = &cpy
	return nil
}

func (f *fakeUserStore) GetUserByID(userID string) (*store.User, error) {
	if u, ok := f.users[userID]; ok {
		cpy := *u
		return &cpy, nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUserStore) GetUserByLogin(identifier string) (*store.User, error) {
	for _, u := range f.users {
		if u.Email == identifier || u.Username == identifier {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUserStore) GetUserByEmail(email string) (*store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUserStore) GetUserByGoogleID(googleID string) (*store.User, error) {
	for _, u := range f.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUserStore) UpdateUser(user *store.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return errs.ErrNotFound
	}
	cpy := *user
	f.users[user.ID] = &cpy
	return nil
}

func (f *fakeUserStore) UsernameTaken(username, excludeUserID string) (bool, error) {
	for id, u := range f.users {
		if id != excludeUserID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) EmailTaken(email, excludeUserID string) (bool, error) {
	for id, u := range f.users {
		if id != excludeUserID && u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type recordingMailer struct {
	to        []string
	verifyURL string
	err       error
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, to, _, verifyURL string) error {
	m.to = append(m.to, to)
	m.verifyURL = verifyURL
	return m.err
}

func newUserTestService(st UserStore, mailer Mailer) *UserService {
	return NewUserService(st, mailer, "http://localhost:5173/", zap.NewNop())
}

func TestRegister_CreatesUnverifiedUserAndSendsEmail(t *testing.T) {
	st := newFakeUserStore()
	mail := &recordingMailer{}
	svc := newUserTestService(st, mail)

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.False(t, user.IsVerified)
	require.True(t, user.HasPassword)
	require.NotNil(t, user.PasswordHash)
	require.True(t, auth.CheckPasswordHash("secret123", *user.PasswordHash))

	require.Equal(t, []string{"alice@example.com"}, mail.to)
	require.Contains(t, mail.verifyURL, "verify-email?token=")
}

func TestRegister_DuplicateAndValidation(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice", "other@example.com", "secret123")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = svc.Register(context.Background(), "", "x@example.com", "secret123")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestRegister_MailerFailureIsNotFatal(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{err: context.DeadlineExceeded})

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	require.Len(t, st.users, 1)
	_ = user
}

func TestVerifyEmailThenLogin(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	// Unverified accounts cannot log in.
	_, _, err = svc.Login("alice@example.com", "secret123")
	require.ErrorIs(t, err, errs.ErrEmailNotVerified)

	require.NotNil(t, user.VerificationToken)
	require.NoError(t, svc.VerifyEmail(*user.VerificationToken))

	got, token, err := svc.Login("alice@example.com", "secret123")
	require.NoError(t, err)
	require.True(t, got.IsVerified)
	require.Nil(t, got.VerificationToken)

	sub, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, sub)
}

func TestLogin_ByUsernameAndFailureModes(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(*user.VerificationToken))

	_, _, err = svc.Login("alice", "secret123")
	require.NoError(t, err)

	_, _, err = svc.Login("alice", "wrong-password")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, _, err = svc.Login("nobody", "secret123")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, _, err = svc.Login("", "")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestLogin_GoogleAccountWithoutPassword(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	_, _, err := svc.GoogleLogin(GoogleProfile{GoogleID: "g-123", Email: "bob@example.com", Name: "bob"})
	require.NoError(t, err)

	_, _, err = svc.Login("bob@example.com", "anything")
	require.ErrorIs(t, err, errs.ErrGoogleNoPassword)
}

func TestGoogleLogin_CreatesVerifiedUser(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	user, token, err := svc.GoogleLogin(GoogleProfile{
		GoogleID: "g-123",
		Email:    "bob@example.com",
		Name:     "bob",
		Picture:  "https://lh3.example/p.jpg",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, user.IsVerified)
	require.True(t, user.IsGoogleUser)
	require.Equal(t, "bob", user.Username)
	require.Equal(t, "https://lh3.example/p.jpg", user.ProfilePicture)

	// Repeat sign-in resolves to the same account.
	again, _, err := svc.GoogleLogin(GoogleProfile{GoogleID: "g-123", Email: "bob@example.com", Name: "bob"})
	require.NoError(t, err)
	require.Equal(t, user.ID, again.ID)
	require.Len(t, st.users, 1)
}

func TestGoogleLogin_LinksExistingEmailAccount(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	existing, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	linked, _, err := svc.GoogleLogin(GoogleProfile{GoogleID: "g-456", Email: "alice@example.com", Name: "Alice"})
	require.NoError(t, err)
	require.Equal(t, existing.ID, linked.ID)
	require.True(t, linked.IsGoogleUser)
	require.True(t, linked.IsVerified)
	require.NotNil(t, linked.GoogleID)
	require.Equal(t, "g-456", *linked.GoogleID)

	// The linked account can still log in with its password.
	_, _, err = svc.Login("alice@example.com", "secret123")
	require.NoError(t, err)
}

func TestGoogleLogin_UsernameCollisionGetsSuffix(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	user, err := svc.Register(context.Background(), "bob", "bob@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(*user.VerificationToken))

	created, _, err := svc.GoogleLogin(GoogleProfile{GoogleID: "g-789abc", Email: "bob@gmail.com", Name: "bob"})
	require.NoError(t, err)
	require.Equal(t, "bob-g-789a", created.Username)
}

func TestUpdateProfile(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	other, err := svc.Register(context.Background(), "bob", "bob@example.com", "secret123")
	require.NoError(t, err)
	_ = other

	updated, err := svc.UpdateProfile(user.ID, ProfileUpdate{Username: "alice2"})
	require.NoError(t, err)
	require.Equal(t, "alice2", updated.Username)

	_, err = svc.UpdateProfile(user.ID, ProfileUpdate{Username: "bob"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = svc.UpdateProfile(user.ID, ProfileUpdate{Email: "bob@example.com"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	// Password change requires the current password.
	_, err = svc.UpdateProfile(user.ID, ProfileUpdate{CurrentPassword: "wrong", NewPassword: "newpass456"})
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = svc.UpdateProfile(user.ID, ProfileUpdate{CurrentPassword: "secret123", NewPassword: "newpass456"})
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(*user.VerificationToken))
	_, _, err = svc.Login("alice2", "newpass456")
	require.NoError(t, err)
}

func TestSetPassword_GoogleOnlyAccounts(t *testing.T) {
	st := newFakeUserStore()
	svc := newUserTestService(st, &recordingMailer{})

	google, _, err := svc.GoogleLogin(GoogleProfile{GoogleID: "g-123", Email: "bob@example.com", Name: "bob"})
	require.NoError(t, err)
	require.NoError(t, svc.SetPassword(google.ID, "firstpass"))

	_, _, err = svc.Login("bob@example.com", "firstpass")
	require.NoError(t, err)

	local, err := svc.Register(context.Background(), "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	require.ErrorIs(t, svc.SetPassword(local.ID, "x"), errs.ErrValidation)
}
