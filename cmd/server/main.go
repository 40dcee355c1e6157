package main

import (
	"context"
	"os"

	"leadgen-dashboard/internal/api"
	"leadgen-dashboard/internal/cache"
	"leadgen-dashboard/internal/config"
	"leadgen-dashboard/internal/database"
	"leadgen-dashboard/internal/history"
	"leadgen-dashboard/internal/leads"
	"leadgen-dashboard/internal/metrics"
	"leadgen-dashboard/internal/n8n"
	"leadgen-dashboard/internal/notify"
	"leadgen-dashboard/internal/qr"
	"leadgen-dashboard/internal/queue"
	"leadgen-dashboard/internal/scheduler"
	"leadgen-dashboard/internal/webhook"
	"leadgen-dashboard/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.LoadConfig()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("database migration failed")
	}

	localCache, err := cache.Open(cfg.CachePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("local cache open failed")
	}

	hub := ws.NewHub(logger)
	go hub.Run()

	client := n8n.NewClient(cfg.N8NBaseURL, cfg.N8NSearchPath, logger)
	notifier := notify.NewService(db, hub, logger)
	leadService := leads.NewService(db, client, notifier, logger)

	tracker := history.NewTracker(db, localCache, logger)
	tracker.Load(context.Background())

	queueManager := queue.NewManager(client, client, tracker, localCache, cfg.OfferType, logger)
	queueManager.Load()

	searchScheduler := scheduler.New(
		leadService.SearchScheduled,
		func(ctx context.Context, typ, title, message string) {
			notifier.Add(ctx, typ, title, message, nil)
		},
		localCache, logger)
	searchScheduler.Load()
	if err := searchScheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}
	defer searchScheduler.Stop()

	watcher := qr.NewWatcher(db, hub, cfg.InstanceName, logger)
	watcher.Start(context.Background())
	defer watcher.Stop()

	webhookHandler := webhook.NewHandler(cfg, db, watcher, notifier, hub, logger)
	leadHandler := api.NewLeadHandler(leadService)
	whatsappHandler := api.NewWhatsAppHandler(cfg, queueManager, tracker, leadService, client, watcher, localCache, logger)
	schedulerHandler := api.NewSchedulerHandler(searchScheduler)
	notificationHandler := api.NewNotificationHandler(notifier)
	dashboardHandler := api.NewDashboardHandler(db, queueManager)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Webhook-Token")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	r.Use(metrics.Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	// Webhook Routes
	r.POST("/webhook/qr", webhookHandler.HandleQRCode)
	r.POST("/webhook/notifications", webhookHandler.HandleNotification)

	apiGroup := r.Group("/api")
	{
		// Lead Routes
		apiGroup.GET("/leads", leadHandler.GetLeads)
		apiGroup.POST("/leads", leadHandler.CreateLead)
		apiGroup.PUT("/leads/:id/status", leadHandler.UpdateStatus)
		apiGroup.PUT("/leads/:id/priority", leadHandler.UpdatePriority)
		apiGroup.DELETE("/leads/:id", leadHandler.DeleteLead)
		apiGroup.POST("/search", leadHandler.Search)

		// Scheduled Search Routes
		apiGroup.GET("/search/scheduled", schedulerHandler.GetPendingSearches)
		apiGroup.POST("/search/scheduled", schedulerHandler.ScheduleSearch)
		apiGroup.DELETE("/search/scheduled/:id", schedulerHandler.RemoveScheduledSearch)

		// Notification Routes
		apiGroup.GET("/notifications", notificationHandler.GetNotifications)
		apiGroup.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
		apiGroup.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		apiGroup.DELETE("/notifications/clear-all", notificationHandler.ClearAll)
		apiGroup.DELETE("/notifications/:id", notificationHandler.Clear)

		// Dashboard Routes
		apiGroup.GET("/dashboard/stats", dashboardHandler.GetStats)

		// WhatsApp Routes
		whatsappGroup := apiGroup.Group("/whatsapp")
		{
			whatsappGroup.GET("/queue", whatsappHandler.GetQueue)
			whatsappGroup.POST("/queue", whatsappHandler.Enqueue)
			whatsappGroup.POST("/queue/send", whatsappHandler.SendQueue)
			whatsappGroup.POST("/queue/:id/retry", whatsappHandler.RetryItem)
			whatsappGroup.DELETE("/queue/:id", whatsappHandler.RemoveItem)
			whatsappGroup.DELETE("/queue", whatsappHandler.ClearQueue)

			whatsappGroup.GET("/history", whatsappHandler.GetSentHistory)

			whatsappGroup.POST("/session/start", whatsappHandler.StartSession)
			whatsappGroup.GET("/qr", whatsappHandler.GetQRCode)
			whatsappGroup.DELETE("/qr", whatsappHandler.ClearQRCode)

			whatsappGroup.GET("/selection", whatsappHandler.GetSelection)
			whatsappGroup.PUT("/selection", whatsappHandler.PutSelection)
		}
	}

	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("failed to run server")
	}
}
