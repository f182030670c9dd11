package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/voicechat/internal/adapters/rtc"
	"github.com/dkeye/voicechat/internal/app/orch"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type API struct {
	Orch       *orch.Orchestrator
	ICEServers []string
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.Validation("bad_payload"))
		return
	}
	u, err := a.Orch.Users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := login(c, u.ID); err != nil {
		abortWithStatus(c, http.StatusInternalServerError, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", string(u.ID)).Msg("registered")
	c.JSON(http.StatusCreated, u)
}

func (a *API) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.Validation("bad_payload"))
		return
	}
	u, err := a.Orch.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := login(c, u.ID); err != nil {
		abortWithStatus(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (a *API) logout(c *gin.Context) {
	if err := logout(c); err != nil {
		abortWithStatus(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) me(c *gin.Context) {
	u, err := a.Orch.Users.Resolve(c.Request.Context(), CurrentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (a *API) users(c *gin.Context) {
	users, err := a.Orch.Users.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users":  users,
		"online": a.Orch.Presence.OnlineUsers(),
	})
}

func (a *API) channels(c *gin.Context) {
	chs, err := a.Orch.ChannelsOf(c.Request.Context(), CurrentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": chs})
}

// history serves /api/channel/:channelId[/:cursor]; a missing cursor means
// the newest page.
func (a *API) history(c *gin.Context) {
	page, err := a.Orch.ChannelHistory(c.Request.Context(), CurrentUser(c),
		domain.RoomID(c.Param("channelId")), c.Param("cursor"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (a *API) createChannel(c *gin.Context) {
	var req struct {
		Participants []domain.UserID `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.Validation("bad_payload"))
		return
	}
	ch, err := a.Orch.CreateChannel(c.Request.Context(), CurrentUser(c), req.Participants)
	if errors.Is(err, domain.ErrNotFound) {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

func (a *API) rtcConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": rtc.Configuration(a.ICEServers).ICEServers})
}
