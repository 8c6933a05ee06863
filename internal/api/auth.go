package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tenant-guardian/backend/internal/state"
)

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if err := s.state.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, state.ErrInvalidCredentials) {
			s.renderError(c, http.StatusUnauthorized, errors.New(s.catalog.Lookup(languageFrom(c), "invalidCredentials")))
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	s.renderAuthStatus(c)
}

func (s *Server) handleGoogleAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"accounts": mockGoogleAccounts})
}

func (s *Server) handleGoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	var account *GoogleAccount
	for i := range mockGoogleAccounts {
		if strings.EqualFold(strings.TrimSpace(req.Email), mockGoogleAccounts[i].Email) {
			account = &mockGoogleAccounts[i]
			break
		}
	}
	if account == nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown account: %s", req.Email))
		return
	}
	profile := s.state.Profile()
	profile.FullName = account.Name
	profile.Email = account.Email
	if err := s.state.LoginAs(c.Request.Context(), profile); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithField("email", account.Email).Info("signed in with mock google account")
	s.renderAuthStatus(c)
}

func (s *Server) handleSignup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("name and email are required"))
		return
	}
	if err := s.state.Signup(c.Request.Context(), req.Name, req.Email); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	s.renderAuthStatus(c)
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.state.Logout(c.Request.Context()); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	s.renderAuthStatus(c)
}

func (s *Server) handleAuthStatus(c *gin.Context) {
	s.renderAuthStatus(c)
}

func (s *Server) renderAuthStatus(c *gin.Context) {
	status := AuthStatus{Authenticated: s.state.Authenticated()}
	if status.Authenticated {
		profile := s.state.Profile()
		status.Profile = &profile
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleGetProfile(c *gin.Context) {
	profile := s.state.Profile()
	c.JSON(http.StatusOK, ProfileResponse{Profile: profile, Completion: profile.Completion()})
}

func (s *Server) handleSaveProfile(c *gin.Context) {
	var profile state.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if err := s.state.SaveProfile(c.Request.Context(), profile); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{Profile: profile, Completion: profile.Completion()})
}
