package member

import (
	"errors"
	"net/http"
	"strconv"

	"milltownabc/internal/api"
	"milltownabc/internal/auth"
	"milltownabc/internal/guard"
	"milltownabc/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrMemberNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrEmailExists), errors.Is(err, ErrPhoneExists):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrEmailNotVerified):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidToken):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, guard.ErrCaptchaMissing):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, guard.ErrCaptchaFailed):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error()})
	default:
		logger.Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
	}
}

// Register godoc
// @Summary      Register a new member
// @Description  Creates an unverified member and emails a verification link.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      member.RegisterRequest  true  "Member details"
// @Success      201      {object}  member.Member
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Failure      429      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !api.BindJSON(c, &req) {
		return
	}

	m, err := h.service.Register(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		respondError(c, err, "Failed to register member")
		return
	}

	c.JSON(http.StatusCreated, m)
}

// VerifyEmail godoc
// @Summary      Verify email address
// @Tags         auth
// @Produce      json
// @Param        token  query     string  true  "Verification token"
// @Success      200    {object}  api.MessageResponse
// @Failure      400    {object}  api.ErrorResponse
// @Router       /auth/verify [get]
func (h *Handler) VerifyEmail(c *gin.Context) {
	if _, err := h.service.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		respondError(c, err, "Failed to verify email")
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Email verified, you can now log in"})
}

// Login godoc
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      member.LoginRequest  true  "Credentials"
// @Success      200      {object}  member.LoginResponse
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !api.BindJSON(c, &req) {
		return
	}

	m, accessToken, refreshToken, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Member:       *m,
	})
}

// RefreshToken godoc
// @Summary      Refresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      member.RefreshRequest  true  "Refresh token"
// @Success      200      {object}  member.RefreshResponse
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Router       /auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if !api.BindJSON(c, &req) {
		return
	}

	accessToken, m, err := h.service.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid or expired refresh token"})
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{AccessToken: accessToken, Member: *m})
}

// ForgotPassword godoc
// @Summary      Request a password reset
// @Description  Always succeeds so that registered addresses cannot be discovered.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      member.ForgotPasswordRequest  true  "Email"
// @Success      200      {object}  api.MessageResponse
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		logger.Error("Password reset request failed", "error", err)
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "If that email is registered, a reset link is on its way"})
}

// ResetPassword godoc
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      member.ResetPasswordRequest  true  "Token and new password"
// @Success      200      {object}  api.MessageResponse
// @Failure      400      {object}  api.ErrorResponse
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err, "Failed to reset password")
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Password updated"})
}

// GetMe godoc
// @Summary      Get my profile
// @Tags         members
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  member.Member
// @Failure      401  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /me [get]
func (h *Handler) GetMe(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	m, err := h.service.GetByID(c.Request.Context(), memberID)
	if err != nil {
		respondError(c, err, "Failed to fetch profile")
		return
	}

	c.JSON(http.StatusOK, m)
}

// UpdateMe godoc
// @Summary      Update my profile
// @Tags         members
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      member.UpdateProfileRequest  true  "Profile"
// @Success      200      {object}  member.Member
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /me [put]
func (h *Handler) UpdateMe(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	var req UpdateProfileRequest
	if !api.BindJSON(c, &req) {
		return
	}

	m, err := h.service.UpdateProfile(c.Request.Context(), memberID, req)
	if err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, m)
}

// DeleteMe godoc
// @Summary      Delete my account
// @Description  Removes the account. Booking history is kept with the member name redacted.
// @Tags         members
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  api.MessageResponse
// @Failure      401  {object}  api.ErrorResponse
// @Router       /me [delete]
func (h *Handler) DeleteMe(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), memberID); err != nil {
		respondError(c, err, "Failed to delete account")
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Account deleted"})
}

// ListMembers godoc
// @Summary      List members
// @Tags         admin,members
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   member.Member
// @Failure      401  {object}  api.ErrorResponse
// @Failure      403  {object}  api.ErrorResponse
// @Router       /admin/members [get]
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch members")
		return
	}

	c.JSON(http.StatusOK, members)
}

// UpdateMember godoc
// @Summary      Update member flags
// @Tags         admin,members
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        memberID  path      int                        true  "Member ID"
// @Param        request   body      member.AdminUpdateRequest  true  "Flags"
// @Success      200       {object}  member.Member
// @Failure      400       {object}  api.ErrorResponse
// @Failure      404       {object}  api.ErrorResponse
// @Router       /admin/members/{memberID} [patch]
func (h *Handler) UpdateMember(c *gin.Context) {
	memberID, err := strconv.Atoi(c.Param("memberID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid member ID"})
		return
	}

	var req AdminUpdateRequest
	if !api.BindJSON(c, &req) {
		return
	}

	m, err := h.service.AdminUpdate(c.Request.Context(), memberID, req)
	if err != nil {
		respondError(c, err, "Failed to update member")
		return
	}

	c.JSON(http.StatusOK, m)
}

// DeleteMember godoc
// @Summary      Delete a member
// @Tags         admin,members
// @Security     BearerAuth
// @Produce      json
// @Param        memberID  path      int  true  "Member ID"
// @Success      200       {object}  api.MessageResponse
// @Failure      400       {object}  api.ErrorResponse
// @Failure      404       {object}  api.ErrorResponse
// @Router       /admin/members/{memberID} [delete]
func (h *Handler) DeleteMember(c *gin.Context) {
	memberID, err := strconv.Atoi(c.Param("memberID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid member ID"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), memberID); err != nil {
		respondError(c, err, "Failed to delete member")
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Member deleted"})
}
