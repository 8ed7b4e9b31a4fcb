package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/SAP-F-2025/quiz-portal/internal/config"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

// OAuthClient is the slice of the Casdoor SDK client used for the code and refresh grants.
type OAuthClient interface {
	GetOAuthToken(code string, state string) (*oauth2.Token, error)
	RefreshOAuthToken(refreshToken string) (*oauth2.Token, error)
	GetSigninUrl(redirectURI string) string
	GetSignupUrl(enablePassword bool, redirectURI string) string
}

type AuthHandler struct {
	BaseHandler
	client OAuthClient
	config config.CasdoorConfig
}

func NewAuthHandler(client OAuthClient, cfg config.CasdoorConfig, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		client:      client,
		config:      cfg,
	}
}

type TokenRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	TokenType    string     `json:"tokenType"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

type AuthURLs struct {
	SignIn         string `json:"signIn"`
	SignUp         string `json:"signUp"`
	ForgotPassword string `json:"forgotPassword"`
}

func newTokenResponse(token *oauth2.Token) TokenResponse {
	resp := TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		resp.ExpiresAt = &expiry
	}
	return resp
}

// ExchangeToken trades an authorization code from the Casdoor login page for tokens
// @Summary Exchange authorization code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Authorization code"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/token [post]
func (h *AuthHandler) ExchangeToken(c *gin.Context) {
	var req TokenRequest
	if !h.bindJSON(c, &req) {
		return
	}

	token, err := h.client.GetOAuthToken(req.Code, req.State)
	if err != nil {
		h.LogError(c, err, "Code exchange failed")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Invalid authorization code"})
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(token))
}

// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest true "Refresh token"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !h.bindJSON(c, &req) {
		return
	}

	token, err := h.client.RefreshOAuthToken(req.RefreshToken)
	if err != nil {
		h.LogRequest(c, "Refresh rejected", "error", err)
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Session expired"})
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(token))
}

// URLs returns the Casdoor hosted pages; Google login is offered on the sign-in page.
func (h *AuthHandler) URLs(c *gin.Context) {
	redirect := c.DefaultQuery("redirect", h.config.RedirectURL)

	c.JSON(http.StatusOK, AuthURLs{
		SignIn:         h.client.GetSigninUrl(redirect),
		SignUp:         h.client.GetSignupUrl(true, redirect),
		ForgotPassword: fmt.Sprintf("%s/forget/%s", strings.TrimRight(h.config.Endpoint, "/"), h.config.Application),
	})
}
