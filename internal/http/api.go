package http

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"streamtube/internal/apperrors"
	"streamtube/internal/domain"
	"streamtube/internal/service"
)

// Handler wires HTTP routes to the account services.
type Handler struct {
	users   service.UserService
	tokens  *service.TokenManager
	tempDir string
}

// NewHandler builds the route handler. tempDir receives uploaded files
// before they are handed to the media store, which removes them.
func NewHandler(users service.UserService, tokens *service.TokenManager, tempDir string) *Handler {
	return &Handler{
		users:   users,
		tokens:  tokens,
		tempDir: tempDir,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	users := router.Group("/api/v1/users")
	{
		users.POST("/register", h.register)
		users.POST("/login", h.login)
		users.POST("/refresh-token", h.refreshTokens)
		users.GET("/channel/:username", optionalAuth(h.tokens), h.channelProfile)

		authed := users.Group("", requireAuth(h.tokens))
		{
			authed.POST("/logout", h.logout)
			authed.GET("/current-user", h.currentUser)
			authed.POST("/change-password", h.changePassword)
			authed.PATCH("/update-account", h.updateAccount)
			authed.PATCH("/avatar", h.updateAvatar)
			authed.PATCH("/cover-image", h.updateCoverImage)
		}
	}

	router.GET("/api/v1/health", func(c *gin.Context) {
		respond(c, http.StatusOK, gin.H{"status": "ok"}, "healthy")
	})
}

func (h *Handler) register(c *gin.Context) {
	input := service.RegisterInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		FullName: c.PostForm("fullName"),
		Password: c.PostForm("password"),
	}

	avatarPath, err := h.saveUpload(c, "avatar")
	if err != nil {
		respondError(c, apperrors.New(apperrors.KindValidation, "avatar file is required"))
		return
	}
	input.AvatarPath = avatarPath

	// Cover image is optional; a missing form file is not an error.
	if coverPath, err := h.saveUpload(c, "coverImage"); err == nil {
		input.CoverImagePath = coverPath
	}

	user, err := h.users.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, userToResponse(user), "User registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindValidation, "invalid request body", err))
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	user, pair, err := h.users.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	setTokenCookies(c, pair)
	respond(c, http.StatusOK, loginResponse{
		User:         userToResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	clearTokenCookies(c)
	respond(c, http.StatusOK, gin.H{}, "User logged out successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) refreshTokens(c *gin.Context) {
	incoming, _ := c.Cookie("refreshToken")
	if incoming == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			incoming = req.RefreshToken
		}
	}

	_, pair, err := h.users.RefreshTokens(c.Request.Context(), incoming)
	if err != nil {
		respondError(c, err)
		return
	}

	setTokenCookies(c, pair)
	respond(c, http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "Access token refreshed")
}

func (h *Handler) currentUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, userToResponse(user), "Current user fetched successfully")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindValidation, "invalid request body", err))
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), currentUserID(c), req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{}, "Password changed successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h *Handler) updateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(apperrors.KindValidation, "invalid request body", err))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), currentUserID(c), req.FullName, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, userToResponse(user), "Account details updated successfully")
}

func (h *Handler) updateAvatar(c *gin.Context) {
	path, err := h.saveUpload(c, "avatar")
	if err != nil {
		respondError(c, apperrors.New(apperrors.KindValidation, "avatar file is required"))
		return
	}

	user, err := h.users.UpdateAvatar(c.Request.Context(), currentUserID(c), path)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, userToResponse(user), "Avatar updated successfully")
}

func (h *Handler) updateCoverImage(c *gin.Context) {
	path, err := h.saveUpload(c, "coverImage")
	if err != nil {
		respondError(c, apperrors.New(apperrors.KindValidation, "cover image file is required"))
		return
	}

	user, err := h.users.UpdateCoverImage(c.Request.Context(), currentUserID(c), path)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, userToResponse(user), "Cover image updated successfully")
}

func (h *Handler) channelProfile(c *gin.Context) {
	profile, err := h.users.GetChannelProfile(c.Request.Context(), c.Param("username"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, channelToResponse(profile), "Channel profile fetched successfully")
}

// saveUpload moves a multipart form file into the temp dir under a unique
// name and returns its path.
func (h *Handler) saveUpload(c *gin.Context, field string) (string, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", err
	}
	return h.saveFile(c, file)
}

func (h *Handler) saveFile(c *gin.Context, file *multipart.FileHeader) (string, error) {
	name := uuid.NewString() + filepath.Ext(file.Filename)
	path := filepath.Join(h.tempDir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", fmt.Errorf("save uploaded file: %w", err)
	}
	return path, nil
}

func setTokenCookies(c *gin.Context, pair service.TokenPair) {
	c.SetCookie("accessToken", pair.AccessToken, 0, "/", "", true, true)
	c.SetCookie("refreshToken", pair.RefreshToken, 0, "/", "", true, true)
}

func clearTokenCookies(c *gin.Context) {
	c.SetCookie("accessToken", "", -1, "/", "", true, true)
	c.SetCookie("refreshToken", "", -1, "/", "", true, true)
}

type UserResponse struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

type ChannelProfileResponse struct {
	Username           string `json:"username"`
	FullName           string `json:"fullName"`
	Email              string `json:"email"`
	Avatar             string `json:"avatar"`
	CoverImage         string `json:"coverImage"`
	SubscribersCount   int64  `json:"subscribersCount"`
	SubscriptionsCount int64  `json:"subscriptionsCount"`
	IsSubscribed       bool   `json:"isSubscribed"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FullName:   user.FullName,
		Avatar:     user.AvatarURL,
		CoverImage: user.CoverImageURL,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  user.UpdatedAt.Format(time.RFC3339),
	}
}

func channelToResponse(profile *domain.ChannelProfile) ChannelProfileResponse {
	return ChannelProfileResponse{
		Username:           profile.Username,
		FullName:           profile.FullName,
		Email:              profile.Email,
		Avatar:             profile.AvatarURL,
		CoverImage:         profile.CoverImageURL,
		SubscribersCount:   profile.SubscribersCount,
		SubscriptionsCount: profile.SubscriptionsCount,
		IsSubscribed:       profile.IsSubscribed,
	}
}
