package http

import (
	"net/http"

	"github.com/dkeye/voicechat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserKey = "user_id"
	ctxUserKey     = "user_id"
)

// RequireUser rejects requests without a logged-in session and exposes the
// session's user id through CurrentUser.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := sessions.Default(c).Get(sessionUserKey).(string)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(ctxUserKey, id)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(ctxUserKey))
}

func login(c *gin.Context, user domain.UserID) error {
	s := sessions.Default(c)
	s.Set(sessionUserKey, string(user))
	return s.Save()
}

func logout(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}
