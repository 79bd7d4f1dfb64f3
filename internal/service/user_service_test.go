package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamtube/internal/apperrors"
	"streamtube/internal/domain"
	"streamtube/internal/repository"
	"streamtube/internal/storage"
)

type fakeUserRepo struct {
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*domain.User)}
}

func (f *fakeUserRepo) Init(context.Context) error { return nil }

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) (int64, error) {
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, repository.ErrConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	c := *user
	f.users[user.ID] = &c
	return user.ID, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByUsernameOrEmail(_ context.Context, username, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) UpdateAccount(_ context.Context, id int64, update repository.AccountUpdate) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Email != nil {
		for _, other := range f.users {
			if other.ID != id && other.Email == *update.Email {
				return repository.ErrConflict
			}
		}
		u.Email = *update.Email
	}
	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	if u, ok := f.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (f *fakeUserRepo) UpdateRefreshToken(_ context.Context, id int64, token string) error {
	if u, ok := f.users[id]; ok {
		u.RefreshToken = token
	}
	return nil
}

func (f *fakeUserRepo) UpdateAvatarURL(_ context.Context, id int64, url string) error {
	if u, ok := f.users[id]; ok {
		u.AvatarURL = url
	}
	return nil
}

func (f *fakeUserRepo) UpdateCoverImageURL(_ context.Context, id int64, url string) error {
	if u, ok := f.users[id]; ok {
		u.CoverImageURL = url
	}
	return nil
}

type fakeSubscriptionRepo struct {
	edges []domain.Subscription
}

func (f *fakeSubscriptionRepo) Init(context.Context) error { return nil }

func (f *fakeSubscriptionRepo) Create(_ context.Context, sub *domain.Subscription) (int64, error) {
	f.edges = append(f.edges, *sub)
	return int64(len(f.edges)), nil
}

func (f *fakeSubscriptionRepo) ChannelStats(_ context.Context, channelID, viewerID int64) (*repository.ChannelStats, error) {
	stats := &repository.ChannelStats{}
	for _, e := range f.edges {
		if e.ChannelID == channelID {
			stats.SubscribersCount++
			if viewerID != 0 && e.SubscriberID == viewerID {
				stats.IsSubscribed = true
			}
		}
		if e.SubscriberID == channelID {
			stats.SubscriptionsCount++
		}
	}
	return stats, nil
}

type fakeMediaStore struct {
	uploads []string
	failAll bool
}

func (f *fakeMediaStore) UploadFile(_ context.Context, localPath string, _ storage.UploadOptions) (string, error) {
	f.uploads = append(f.uploads, localPath)
	if f.failAll {
		return "", errors.New("upstream unavailable")
	}
	return fmt.Sprintf("https://cdn.example.com/%s", localPath), nil
}

func newTestService(t *testing.T, media *fakeMediaStore) (UserService, *fakeUserRepo, *fakeSubscriptionRepo) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	users := newFakeUserRepo()
	subs := &fakeSubscriptionRepo{}
	tokens := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	svc := NewUserService(users, subs, media, tokens, storage.UploadOptions{Bucket: "media"}, logger)
	return svc, users, subs
}

func registerInput(username string) RegisterInput {
	return RegisterInput{
		Username:   username,
		Email:      username + "@example.com",
		FullName:   "Test " + username,
		Password:   "swordfish",
		AvatarPath: username + "-avatar.png",
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns sanitized user", func(t *testing.T) {
		media := &fakeMediaStore{}
		svc, _, _ := newTestService(t, media)

		user, err := svc.Register(ctx, registerInput("Alice"))
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username, "username is lowercased")
		assert.Equal(t, "Alice@example.com", user.Email)
		assert.Empty(t, user.PasswordHash)
		assert.Empty(t, user.RefreshToken)
		assert.NotEmpty(t, user.AvatarURL)
		assert.Len(t, media.uploads, 1)
	})

	t.Run("blank fields rejected", func(t *testing.T) {
		media := &fakeMediaStore{}
		svc, _, _ := newTestService(t, media)

		for name, mutate := range map[string]func(*RegisterInput){
			"username":  func(in *RegisterInput) { in.Username = "   " },
			"email":     func(in *RegisterInput) { in.Email = "" },
			"full name": func(in *RegisterInput) { in.FullName = "\t" },
			"password":  func(in *RegisterInput) { in.Password = " " },
		} {
			t.Run(name, func(t *testing.T) {
				in := registerInput("blank")
				mutate(&in)
				_, err := svc.Register(ctx, in)
				require.Error(t, err)
				assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			})
		}
		assert.Empty(t, media.uploads, "media store not contacted for invalid input")
	})

	t.Run("missing avatar rejected before upload", func(t *testing.T) {
		media := &fakeMediaStore{}
		svc, _, _ := newTestService(t, media)

		in := registerInput("noavatar")
		in.AvatarPath = ""
		_, err := svc.Register(ctx, in)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		assert.Empty(t, media.uploads)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t, &fakeMediaStore{})

		_, err := svc.Register(ctx, registerInput("first"))
		require.NoError(t, err)

		in := registerInput("second")
		in.Email = "first@example.com"
		_, err = svc.Register(ctx, in)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t, &fakeMediaStore{})

		_, err := svc.Register(ctx, registerInput("taken"))
		require.NoError(t, err)

		in := registerInput("Taken")
		in.Email = "other@example.com"
		_, err = svc.Register(ctx, in)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})

	t.Run("avatar upload failure is a dependency error", func(t *testing.T) {
		media := &fakeMediaStore{failAll: true}
		svc, _, _ := newTestService(t, media)

		_, err := svc.Register(ctx, registerInput("unlucky"))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindDependency, apperrors.KindOf(err))
	})

	t.Run("cover upload failure leaves cover empty", func(t *testing.T) {
		media := &fakeMediaStore{}
		svc, users, _ := newTestService(t, media)

		in := registerInput("covered")
		in.CoverImagePath = "covered-cover.png"
		user, err := svc.Register(ctx, in)
		require.NoError(t, err)
		assert.NotEmpty(t, user.CoverImageURL)

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.CoverImageURL, stored.CoverImageURL)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, &fakeMediaStore{})

	_, err := svc.Register(ctx, registerInput("carol"))
	require.NoError(t, err)

	t.Run("unknown identifier", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "nobody", "swordfish")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "carol", "wrong")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
	})

	t.Run("success by username", func(t *testing.T) {
		user, pair, err := svc.Login(ctx, "carol", "swordfish")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Empty(t, user.PasswordHash)
		assert.Empty(t, user.RefreshToken)

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, pair.RefreshToken, stored.RefreshToken, "refresh token persisted")
	})

	t.Run("success by email", func(t *testing.T) {
		_, pair, err := svc.Login(ctx, "carol@example.com", "swordfish")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
	})
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, &fakeMediaStore{})

	registered, err := svc.Register(ctx, registerInput("dave"))
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "dave", "swordfish")
	require.NoError(t, err)

	t.Run("rotation invalidates the old token", func(t *testing.T) {
		_, next, err := svc.RefreshTokens(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		stored, err := users.GetByID(ctx, registered.ID)
		require.NoError(t, err)
		assert.Equal(t, next.RefreshToken, stored.RefreshToken)

		_, _, err = svc.RefreshTokens(ctx, pair.RefreshToken)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
	})

	t.Run("missing token", func(t *testing.T) {
		_, _, err := svc.RefreshTokens(ctx, "  ")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := svc.RefreshTokens(ctx, "not-a-jwt")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
	})

	t.Run("cleared token rejected", func(t *testing.T) {
		_, current, err := svc.Login(ctx, "dave", "swordfish")
		require.NoError(t, err)
		require.NoError(t, svc.Logout(ctx, registered.ID))

		_, _, err = svc.RefreshTokens(ctx, current.RefreshToken)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
	})
}

func TestLogoutIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t, &fakeMediaStore{})

	registered, err := svc.Register(ctx, registerInput("erin"))
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "erin", "swordfish")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, registered.ID))
	require.NoError(t, svc.Logout(ctx, registered.ID))

	stored, err := users.GetByID(ctx, registered.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &fakeMediaStore{})

	registered, err := svc.Register(ctx, registerInput("frank"))
	require.NoError(t, err)

	t.Run("wrong old password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, registered.ID, "wrong", "newpassword")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
	})

	t.Run("blank new password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, registered.ID, "swordfish", "   ")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("success rotates the credential", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(ctx, registered.ID, "swordfish", "newpassword"))

		_, _, err := svc.Login(ctx, "frank", "swordfish")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))

		_, _, err = svc.Login(ctx, "frank", "newpassword")
		require.NoError(t, err)
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &fakeMediaStore{})

	registered, err := svc.Register(ctx, registerInput("grace"))
	require.NoError(t, err)

	t.Run("no fields rejected", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, registered.ID, "  ", "")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("merges provided fields", func(t *testing.T) {
		updated, err := svc.UpdateProfile(ctx, registered.ID, "Grace Hopper", "")
		require.NoError(t, err)
		assert.Equal(t, "Grace Hopper", updated.FullName)
		assert.Equal(t, registered.Email, updated.Email)
		assert.Empty(t, updated.PasswordHash)
	})

	t.Run("email collision conflicts", func(t *testing.T) {
		_, err := svc.Register(ctx, registerInput("heidi"))
		require.NoError(t, err)

		_, err = svc.UpdateProfile(ctx, registered.ID, "", "heidi@example.com")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})
}

func TestUpdateMedia(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file rejected without upload", func(t *testing.T) {
		media := &fakeMediaStore{}
		svc, _, _ := newTestService(t, media)

		registered, err := svc.Register(ctx, registerInput("ivan"))
		require.NoError(t, err)
		uploadsBefore := len(media.uploads)

		_, err = svc.UpdateAvatar(ctx, registered.ID, "")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		assert.Len(t, media.uploads, uploadsBefore)
	})

	t.Run("avatar replaced", func(t *testing.T) {
		svc, _, _ := newTestService(t, &fakeMediaStore{})

		registered, err := svc.Register(ctx, registerInput("judy"))
		require.NoError(t, err)

		updated, err := svc.UpdateAvatar(ctx, registered.ID, "new-avatar.png")
		require.NoError(t, err)
		assert.NotEqual(t, registered.AvatarURL, updated.AvatarURL)
		assert.Contains(t, updated.AvatarURL, "new-avatar.png")
	})

	t.Run("cover upload failure is a dependency error", func(t *testing.T) {
		media := &fakeMediaStore{}
		svc, _, _ := newTestService(t, media)

		registered, err := svc.Register(ctx, registerInput("kevin"))
		require.NoError(t, err)

		media.failAll = true
		_, err = svc.UpdateCoverImage(ctx, registered.ID, "cover.png")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindDependency, apperrors.KindOf(err))
	})
}

func TestGetChannelProfile(t *testing.T) {
	ctx := context.Background()
	svc, _, subs := newTestService(t, &fakeMediaStore{})

	alice, err := svc.Register(ctx, registerInput("alice"))
	require.NoError(t, err)
	bob, err := svc.Register(ctx, registerInput("bob"))
	require.NoError(t, err)
	mallory, err := svc.Register(ctx, registerInput("mallory"))
	require.NoError(t, err)

	_, err = subs.Create(ctx, &domain.Subscription{SubscriberID: bob.ID, ChannelID: alice.ID})
	require.NoError(t, err)

	t.Run("blank username rejected", func(t *testing.T) {
		_, err := svc.GetChannelProfile(ctx, "  ", 0)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("unknown channel", func(t *testing.T) {
		_, err := svc.GetChannelProfile(ctx, "ghost", 0)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("counts and subscription flag per viewer", func(t *testing.T) {
		profile, err := svc.GetChannelProfile(ctx, "Alice", bob.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), profile.SubscribersCount)
		assert.Equal(t, int64(0), profile.SubscriptionsCount)
		assert.True(t, profile.IsSubscribed)

		profile, err = svc.GetChannelProfile(ctx, "alice", mallory.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), profile.SubscribersCount)
		assert.False(t, profile.IsSubscribed)

		profile, err = svc.GetChannelProfile(ctx, "alice", 0)
		require.NoError(t, err)
		assert.False(t, profile.IsSubscribed)

		profile, err = svc.GetChannelProfile(ctx, "bob", alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), profile.SubscribersCount)
		assert.Equal(t, int64(1), profile.SubscriptionsCount)
	})
}
