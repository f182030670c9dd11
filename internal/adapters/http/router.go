package http

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/dkeye/voicechat/internal/adapters/signal"
	"github.com/dkeye/voicechat/internal/app/orch"
	"github.com/dkeye/voicechat/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const sessionName = "VoiceChatSession"

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctrl *signal.SignalWSController, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 24 * 7,
		HttpOnly: true,
		Secure:   cfg.Mode == "release",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := &API{Orch: o, ICEServers: cfg.RTC.ICEServers}

	g := r.Group("/api")
	g.POST("/register", api.register)
	g.POST("/login", api.login)
	g.POST("/logout", api.logout)

	authed := g.Group("", RequireUser())
	authed.GET("/me", api.me)
	authed.GET("/users", api.users)
	authed.GET("/channels", api.channels)
	authed.GET("/channel/:channelId", api.history)
	authed.GET("/channel/:channelId/:cursor", api.history)
	authed.POST("/createChannel", api.createChannel)
	authed.GET("/rtc/config", api.rtcConfig)

	authed.POST("/files", api.createUpload)
	authed.HEAD("/files/:id", api.uploadOffset)
	authed.PATCH("/files/:id", api.appendUpload)
	authed.DELETE("/files/:id", api.deleteUpload)

	authed.GET("/ws", func(c *gin.Context) {
		user := CurrentUser(c)
		log.Info().Str("module", "adapters.http").Str("user", string(user)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, user)
	})

	files := r.Group("/files", RequireUser())
	files.GET("/:id", api.download)
	files.GET("/:id/:name", api.download)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
