package controllers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"igx_tracker/internal/middleware"
)

const roleAdmin = "admin"

// Login exchanges the operator credentials for a token.
func (h *Handler) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.Auth.AdminPasswordHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin login is not configured"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(body.Username), []byte(h.Auth.AdminUser)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(h.Auth.AdminPasswordHash), []byte(body.Password))
	if !userOK || passErr != nil {
		logrus.WithField("username", body.Username).Warn("failed admin login")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := middleware.GenerateToken(body.Username, roleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
