package client

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"

	"github.com/pilehq/pilebox/internal/client/handlers"
	"github.com/pilehq/pilebox/internal/client/middleware"
	"github.com/pilehq/pilebox/internal/client/pilemgr"
	"github.com/pilehq/pilebox/internal/version"
)

//	@title						Pilebox Control Plane API
//	@version					0.1.0
//	@description				HTTP API for driving the Pilebox sync daemon
//	@BasePath					/
//	@securityDefinitions.apikey	APIToken
//	@in							header
//	@name						Authorization

type RouteConfig struct {
	Auth middleware.TokenAuthConfig
}

func SetupRoutes(mgr *pilemgr.PileManager, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	rateLimitStore := memory.NewStore()
	rateLimiter := limiter.New(rateLimitStore, limiter.Rate{
		Period: 1 * time.Second,
		Limit:  10,
	})

	statusH := handlers.NewStatusHandler(mgr)
	pileH := handlers.NewPileHandler(mgr)
	syncH := handlers.NewSyncHandler(mgr)
	conflictH := handlers.NewConflictHandler(mgr)
	migrateH := handlers.NewMigrateHandler(mgr)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", IndexHandler)

	// @Security APIToken
	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1.GET("/status", statusH.Status)

		v1Piles := v1.Group("/piles")
		{
			v1Piles.GET("/status", pileH.Status)
			v1Piles.POST("/link", pileH.Link)
			v1Piles.POST("/unlink", pileH.Unlink)
		}

		v1Sync := v1.Group("/sync")
		{
			v1Sync.POST("/now", syncH.Now)
			v1Sync.POST("/rescan", syncH.Rescan)
		}

		v1Conflicts := v1.Group("/conflicts")
		{
			v1Conflicts.GET("", conflictH.List)
			v1Conflicts.GET("/artifact", conflictH.Artifact)
			v1Conflicts.POST("/resolve", conflictH.Resolve)
		}

		v1.POST("/migrate", migrateH.Migrate)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, &handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeNotFound,
			Error:     "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, &handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeBadRequest,
			Error:     "method not allowed",
		})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Detailed())
}
