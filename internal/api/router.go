package api

import (
	"net/http"                     // HTTP status codes
	"tabletop/internal/battlemap"  // Battle map service
	"tabletop/internal/chat"       // Chat service
	"tabletop/internal/combat"     // Combat tracker
	"tabletop/internal/config"     // Configuration
	"tabletop/internal/middleware" // Custom middleware
	"tabletop/internal/realtime"   // Socket hub
	"tabletop/internal/treasury"   // Gold ledger
	"time"                         // Durations

	ratelimit "github.com/JGLTechnologies/gin-rate-limit" // Login rate limiting
	"github.com/gin-contrib/cors"                         // CORS middleware
	"github.com/gin-gonic/gin"                            // Gin web framework
	"github.com/redis/go-redis/v9"                        // Redis client
	"github.com/sirupsen/logrus"                          // Logging library
	ginprometheus "github.com/zsais/go-gin-prometheus"    // Request metrics
	"gorm.io/gorm"                                        // GORM ORM library
)

// Deps are the collaborators the HTTP layer is built from
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client      // Optional, nil disables caching
	Hub       *realtime.Hub      // Socket connections
	Publisher realtime.Publisher // Where handlers broadcast, normally Hub
	Chat      *chat.Service
	Combat    *combat.Service
	Maps      *battlemap.Service
	Treasury  *treasury.Service
	RateLimit ratelimit.Store // Optional, limits login and register per client IP
	Metrics   bool            // Expose /metrics and collect request metrics
}

// loginLimiter wraps the rate limit store, or passes through when there is none
func loginLimiter(store ratelimit.Store) gin.HandlerFunc {
	if store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			logrus.WithFields(logrus.Fields{
				"ip":         c.ClientIP(),
				"path":       c.Request.URL.Path,
				"reset_time": info.ResetTime,
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many attempts, try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
			})
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP() // Use client IP as the key
		},
	})
}

// NewRouter builds the gin engine with every route
func NewRouter(d Deps) *gin.Engine {
	RegisterValidators()
	cfg := d.Config

	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// Request metrics, labelled by route template rather than raw path
	if d.Metrics {
		p := ginprometheus.NewPrometheus("gin")
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			return c.FullPath()
		}
		p.Use(r)
	}

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Cross-origin browsers only when origins are configured
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
		corsConfig.AllowCredentials = true
		corsConfig.MaxAge = 12 * time.Hour
		r.Use(cors.New(corsConfig))
	}

	limiter := loginLimiter(d.RateLimit)
	auth := middleware.AuthMiddleware(d.DB, cfg.JWTSecret)
	dmOnly := middleware.DMOnlyMiddleware()

	// Session routes
	r.POST("/register", limiter, RegisterHandler(d.DB))                      // Registration endpoint
	r.POST("/login", limiter, LoginHandler(d.DB, cfg.JWTSecret, cfg.IsProd)) // Login endpoint
	r.GET("/logout", LogoutHandler(cfg.IsProd))                              // Logout endpoint
	r.GET("/api/health", HealthHandler(cfg.AppVersion))                      // Health check

	// Socket and file routes (protected by JWT)
	socket := NewSocketHandler(d.DB, d.Hub, d.Chat, d.Maps)
	r.GET("/ws", auth, WebSocketHandler(d.Hub, socket, cfg.AllowedOrigins))
	r.POST("/upload", auth, UploadFileHandler(d.DB, d.Publisher, cfg.UploadDir, cfg.MaxUploadSize))
	r.GET("/files/:name", auth, ServeFileHandler(cfg.UploadDir))

	// API routes (protected by JWT)
	apiGroup := r.Group("/api", auth)
	apiGroup.GET("/characters", ListCharactersHandler(d.DB))
	apiGroup.POST("/characters", CreateCharacterHandler(d.DB, d.Publisher))
	apiGroup.PUT("/characters/:id", UpdateCharacterHandler(d.DB, d.Publisher))
	apiGroup.DELETE("/characters/:id", DeleteCharacterHandler(d.DB, d.Publisher, d.Maps))
	apiGroup.GET("/characters/:id/sheet", CharacterSheetHandler(d.DB))
	apiGroup.GET("/characters/:id/purse", GetPurseHandler(d.Treasury))
	apiGroup.GET("/characters/:id/purse/history", PurseHistoryHandler(d.Treasury))
	apiGroup.POST("/characters/:id/purse/spend", SpendGoldHandler(d.Treasury))
	apiGroup.POST("/characters/:id/purse/transfer", TransferGoldHandler(d.Treasury))

	apiGroup.GET("/campaign", GetCampaignHandler(d.DB, d.Redis))
	apiGroup.PUT("/campaign/:key", SetCampaignKeyHandler(d.DB, d.Redis, d.Publisher))

	apiGroup.GET("/messages", GetMessagesHandler(d.Chat))
	apiGroup.POST("/dice/roll", RollDiceHandler(d.Chat))
	apiGroup.GET("/files", ListFilesHandler(d.DB))

	apiGroup.GET("/combat/state", CombatStateHandler(d.Combat))
	apiGroup.POST("/combat/update-hp", UpdateHPHandler(d.Combat))

	apiGroup.GET("/battlemap/state", BattlemapStateHandler(d.Maps))
	apiGroup.POST("/battlemap/move-token", MoveTokenHandler(d.Maps))

	apiGroup.GET("/quests", ListQuestsHandler(d.DB))
	apiGroup.GET("/npcs", ListNPCsHandler(d.DB))

	// DM routes (protected, role re-read on each request)
	dmGroup := apiGroup.Group("", dmOnly)
	dmGroup.GET("/dm/book/:section", BookSectionHandler())
	dmGroup.POST("/combat/start", StartCombatHandler(d.Combat))
	dmGroup.POST("/combat/next-turn", NextTurnHandler(d.Combat))
	dmGroup.POST("/combat/end", EndCombatHandler(d.Combat))
	dmGroup.PUT("/battlemap/settings", BattlemapSettingsHandler(d.Maps))
	dmGroup.POST("/quests", CreateQuestHandler(d.DB, d.Publisher))
	dmGroup.PUT("/quests/:id", UpdateQuestHandler(d.DB, d.Publisher))
	dmGroup.POST("/npcs", CreateNPCHandler(d.DB, d.Publisher))
	dmGroup.PUT("/npcs/:id", UpdateNPCHandler(d.DB, d.Publisher))
	dmGroup.DELETE("/npcs/:id", DeleteNPCHandler(d.DB, d.Publisher))
	dmGroup.POST("/characters/:id/purse/grant", GrantGoldHandler(d.Treasury))
	dmGroup.GET("/dm/users", ListUsersHandler(d.DB))
	dmGroup.PUT("/dm/users/:id/role", UpdateUserRoleHandler(d.DB))
	dmGroup.GET("/dm/messages", ChatLogHandler(d.DB))
	return r
}
