package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"streamtube/internal/apperrors"
	"streamtube/internal/domain"
	"streamtube/internal/repository"
	"streamtube/internal/storage"
)

// RegisterInput carries the fields of a registration request. AvatarPath
// and CoverImagePath are local temporary files produced by the upload
// middleware; the media store consumes and removes them.
type RegisterInput struct {
	Username       string
	Email          string
	FullName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// UserService describes the account lifecycle operations.
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, identifier, password string) (*domain.User, TokenPair, error)
	Logout(ctx context.Context, userID int64) error
	RefreshTokens(ctx context.Context, incoming string) (*domain.User, TokenPair, error)
	IssueTokenPair(ctx context.Context, userID int64) (TokenPair, error)
	VerifyPassword(user *domain.User, candidate string) bool
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID int64, fullName, email string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, userID int64, localPath string) (*domain.User, error)
	UpdateCoverImage(ctx context.Context, userID int64, localPath string) (*domain.User, error)
	GetChannelProfile(ctx context.Context, username string, viewerID int64) (*domain.ChannelProfile, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	media   storage.Service
	tokens  *TokenManager
	uploads storage.UploadOptions
	logger  *logrus.Logger
}

func NewUserService(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	media storage.Service,
	tokens *TokenManager,
	uploads storage.UploadOptions,
	logger *logrus.Logger,
) UserService {
	return &userService{
		users:   users,
		subs:    subs,
		media:   media,
		tokens:  tokens,
		uploads: uploads,
		logger:  logger,
	}
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.TrimSpace(input.Email)
	fullName := strings.TrimSpace(input.FullName)
	password := strings.TrimSpace(input.Password)

	if username == "" || email == "" || fullName == "" || password == "" {
		return nil, apperrors.New(apperrors.KindValidation, "all fields are required")
	}
	if strings.TrimSpace(input.AvatarPath) == "" {
		return nil, apperrors.New(apperrors.KindValidation, "avatar file is required")
	}

	existing, err := s.users.GetByUsernameOrEmail(ctx, username, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.KindInternal, "lookup existing user", err)
	}
	if existing != nil {
		return nil, apperrors.New(apperrors.KindConflict, "user with this username or email already exists")
	}

	avatarURL, err := s.media.UploadFile(ctx, input.AvatarPath, s.uploads)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "avatar upload failed", err)
	}

	// The cover image is optional; a failed upload leaves it empty.
	coverURL := ""
	if strings.TrimSpace(input.CoverImagePath) != "" {
		coverURL, err = s.media.UploadFile(ctx, input.CoverImagePath, s.uploads)
		if err != nil {
			s.logger.Warnf("cover image upload failed for %s: %v", username, err)
			coverURL = ""
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "hash password", err)
	}

	user := &domain.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  string(hash),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}

	id, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Wrap(apperrors.KindConflict, "user with this username or email already exists", err)
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "create user", err)
	}

	created, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "something went wrong while registering the user", err)
	}
	return created.Sanitized(), nil
}

// VerifyPassword reports whether the candidate matches the stored hash.
func (s *userService) VerifyPassword(user *domain.User, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(candidate)) == nil
}

func (s *userService) Login(ctx context.Context, identifier, password string) (*domain.User, TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || strings.TrimSpace(password) == "" {
		return nil, TokenPair{}, apperrors.New(apperrors.KindValidation, "username or email and password are required")
	}

	user, err := s.users.GetByUsernameOrEmail(ctx, strings.ToLower(identifier), identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, TokenPair{}, apperrors.New(apperrors.KindNotFound, "user does not exist")
		}
		return nil, TokenPair{}, apperrors.Wrap(apperrors.KindInternal, "lookup user", err)
	}

	if !s.VerifyPassword(user, password) {
		return nil, TokenPair{}, apperrors.New(apperrors.KindAuth, "invalid user credentials")
	}

	pair, err := s.IssueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user.Sanitized(), pair, nil
}

// IssueTokenPair mints a fresh access+refresh pair and persists the refresh
// token, displacing whatever session held it before. Only the newest
// issuance can refresh.
func (s *userService) IssueTokenPair(ctx context.Context, userID int64) (TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.KindInternal, "something went wrong while generating tokens", err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.KindInternal, "something went wrong while generating tokens", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.KindInternal, "something went wrong while generating tokens", err)
	}

	if err := s.users.UpdateRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.KindInternal, "something went wrong while generating tokens", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *userService) Logout(ctx context.Context, userID int64) error {
	if err := s.users.UpdateRefreshToken(ctx, userID, ""); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "logout failed", err)
	}
	return nil
}

func (s *userService) RefreshTokens(ctx context.Context, incoming string) (*domain.User, TokenPair, error) {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return nil, TokenPair{}, apperrors.New(apperrors.KindAuth, "refresh token is required")
	}

	userID, err := s.tokens.ParseRefreshToken(incoming)
	if err != nil {
		return nil, TokenPair{}, apperrors.Wrap(apperrors.KindAuth, "invalid refresh token", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, TokenPair{}, apperrors.New(apperrors.KindAuth, "invalid refresh token")
	}

	// The stored token always reflects the newest issuance; anything older
	// has been rotated out and is permanently rejected.
	if user.RefreshToken == "" || user.RefreshToken != incoming {
		return nil, TokenPair{}, apperrors.New(apperrors.KindAuth, "refresh token is expired or already used")
	}

	pair, err := s.IssueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user.Sanitized(), pair, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return apperrors.New(apperrors.KindValidation, "new password is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.New(apperrors.KindNotFound, "user does not exist")
		}
		return apperrors.Wrap(apperrors.KindInternal, "lookup user", err)
	}

	if !s.VerifyPassword(user, oldPassword) {
		return apperrors.New(apperrors.KindAuth, "invalid old password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "hash password", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "update password", err)
	}
	return nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int64, fullName, email string) (*domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" && email == "" {
		return nil, apperrors.New(apperrors.KindValidation, "at least one of full name or email is required")
	}

	update := repository.AccountUpdate{}
	if fullName != "" {
		update.FullName = &fullName
	}
	if email != "" {
		update.Email = &email
	}

	if err := s.users.UpdateAccount(ctx, userID, update); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Wrap(apperrors.KindConflict, "email already in use", err)
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "update account", err)
	}

	return s.GetByID(ctx, userID)
}

func (s *userService) UpdateAvatar(ctx context.Context, userID int64, localPath string) (*domain.User, error) {
	return s.updateMedia(ctx, userID, localPath, "avatar", s.users.UpdateAvatarURL)
}

func (s *userService) UpdateCoverImage(ctx context.Context, userID int64, localPath string) (*domain.User, error) {
	return s.updateMedia(ctx, userID, localPath, "cover image", s.users.UpdateCoverImageURL)
}

func (s *userService) updateMedia(
	ctx context.Context,
	userID int64,
	localPath, label string,
	persist func(context.Context, int64, string) error,
) (*domain.User, error) {
	if strings.TrimSpace(localPath) == "" {
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("%s file is required", label))
	}

	url, err := s.media.UploadFile(ctx, localPath, s.uploads)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, fmt.Sprintf("%s upload failed", label), err)
	}

	if err := persist(ctx, userID, url); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, fmt.Sprintf("update %s", label), err)
	}

	return s.GetByID(ctx, userID)
}

func (s *userService) GetChannelProfile(ctx context.Context, username string, viewerID int64) (*domain.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, apperrors.New(apperrors.KindValidation, "username is required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "channel does not exist")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "lookup channel", err)
	}

	stats, err := s.subs.ChannelStats(ctx, user.ID, viewerID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "aggregate channel stats", err)
	}

	return &domain.ChannelProfile{
		Username:           user.Username,
		FullName:           user.FullName,
		Email:              user.Email,
		AvatarURL:          user.AvatarURL,
		CoverImageURL:      user.CoverImageURL,
		SubscribersCount:   stats.SubscribersCount,
		SubscriptionsCount: stats.SubscriptionsCount,
		IsSubscribed:       stats.IsSubscribed,
	}, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "user does not exist")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "lookup user", err)
	}
	return user.Sanitized(), nil
}
