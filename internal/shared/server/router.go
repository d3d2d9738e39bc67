package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/shared/config"
	"sealdeal-backend/internal/shared/metrics"
	"sealdeal-backend/internal/shared/server/middleware"
	"sealdeal-backend/internal/shared/server/respond"
)

const (
	apiPrefix      = "/api/v1"
	rateGroupChat  = "CHAT"
	rateGroupOther = "DEFAULT"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// PublicRegistrar is implemented by handlers that expose unauthenticated routes.
type PublicRegistrar interface {
	RegisterPublicRoutes(r gin.IRoutes)
}

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config config.Config
	Tokens middleware.TokenVerifier

	Users      Registrar
	Deals      Registrar
	Benchmarks Registrar
	Analyses   Registrar
	Analytics  Registrar
	Pipeline   Registrar
	Uploads    Registrar
	Chat       interface {
		Registrar
		PublicRegistrar
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	public := r.Group(apiPrefix)
	public.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.Chat != nil {
		deps.Chat.RegisterPublicRoutes(public)
	}

	api := r.Group(apiPrefix)
	api.Use(
		middleware.Auth(deps.Tokens),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupOther,
			GroupFor:     rateGroupFor,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupOther: {Rate: deps.Config.RateLimitRPS, Burst: deps.Config.RateLimitBurst},
				rateGroupChat:  {Rate: deps.Config.ChatRateLimitRPS, Burst: deps.Config.ChatRateLimitBurst},
			},
		}),
	)

	for _, h := range []Registrar{
		deps.Users,
		deps.Deals,
		deps.Benchmarks,
		deps.Analyses,
		deps.Analytics,
		deps.Pipeline,
		deps.Uploads,
	} {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}
	if deps.Chat != nil {
		deps.Chat.RegisterRoutes(api)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	if strings.HasPrefix(c.FullPath(), apiPrefix+"/chat") {
		return rateGroupChat
	}
	return rateGroupOther
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
