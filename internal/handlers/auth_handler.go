package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

type authResponse struct {
	Token string          `json:"token"`
	User  models.UserView `json:"user"`
}

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

type profileResponse struct {
	ID       string      `json:"_id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req services.RegisterInput
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.credentials.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	h.respondWithToken(c, http.StatusCreated, u)
}

// Login accepts either the username or the email in emailOrUsername.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.credentials.VerifyCredentials(c.Request.Context(), req.EmailOrUsername, req.Password)
	h.metrics.Login(err == nil)
	if err != nil {
		fail(c, err)
		return
	}
	h.respondWithToken(c, http.StatusOK, u)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, u *models.User) {
	token, err := h.tokens.Issue(utils.Claims{SubjectID: u.ID.Hex(), Role: u.Role})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(status, authResponse{Token: token, User: u.View()})
}

// GetCurrentUser returns the authenticated user's profile.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	u, err := h.credentials.GetUser(c.Request.Context(), middleware.CurrentUser(c).ID.Hex())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Sanitized())
}

// UpdateCurrentUser changes the caller's own username, email or password.
func (h *Handler) UpdateCurrentUser(c *gin.Context) {
	var req services.ProfileInput
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.credentials.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c).ID.Hex(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{ID: u.ID.Hex(), Username: u.Username, Email: u.Email, Role: u.Role})
}
