package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"estimmo/server/config"
	"estimmo/server/internal/api"
	"estimmo/server/internal/database"
	"estimmo/server/internal/dvf"
	"estimmo/server/internal/estimation"
	"estimmo/server/internal/geocache"
	"estimmo/server/internal/geocoding"
	"estimmo/server/internal/poi"
	"estimmo/server/internal/scheduler"
	"estimmo/server/internal/telegram"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	cacheStore, err := geocache.NewStore(cfg.GeocacheDBPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize geocode cache store")
	}

	cacheQueue := geocache.NewEntryQueue(cfg.CacheFlush.MaxBatchSize*2, logger)
	cacheWriter := geocache.NewWriter(cacheStore.DB(), cacheQueue, cfg, logger)
	cacheWriter.Start()

	geocoder := geocoding.NewGeocoder(logger, cfg.Geocoder.BaseURL, time.Duration(cfg.Geocoder.Timeout)*time.Second)
	warmGeocoder(geocoder, cacheStore, logger)
	geocoder.OnResolve(func(key string, res geocoding.Result) {
		err := cacheQueue.Push(&geocache.Entry{
			Key:       key,
			Label:     res.Label,
			Postcode:  res.Postcode,
			Latitude:  res.Point.Lat(),
			Longitude: res.Point.Lon(),
		})
		if err != nil {
			logger.WithError(err).WithField("address", key).Warn("Failed to queue geocode cache entry")
		}
	})

	catalog := dvf.NewCatalog(cfg.DataDir, logger)
	rescanner := scheduler.NewScheduler(catalog, logger, time.Duration(cfg.Scheduler.RescanMinutes)*time.Minute)
	rescanner.Start()

	source := dvf.NewSource(catalog, logger)
	estimator := estimation.NewEstimator(source, geocoder, logger, cfg.Geocoder.WorkerCount, cfg.Geocoder.MaxPlausibleKm)
	poiClient := poi.NewClient(logger, cfg.Overpass.BaseURL, 15*time.Second)
	telegramService := telegram.NewService(logger, telegram.Config{
		Enabled:  cfg.Telegram.Enabled,
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
	})

	handler := api.NewHandler(
		db,
		logger,
		geocoder,
		estimator,
		catalog,
		poiClient,
		telegramService,
		cfg.AdminPassword,
		cfg.Overpass.RadiusMeters,
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Admin-Password"},
		ExposeHeaders: []string{"Content-Disposition"},
	}))

	api.SetupRoutes(router, handler)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Forced server shutdown")
	}

	rescanner.Stop()

	// Drain the pending cache entries before exit
	if err := cacheQueue.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close geocode cache queue")
	}
	cacheWriter.Stop()

	logger.Info("Server stopped")
}

func warmGeocoder(geocoder *geocoding.Geocoder, store *geocache.Store, logger *logrus.Logger) {
	entries, err := store.LoadAll()
	if err != nil {
		logger.WithError(err).Warn("Failed to load persisted geocode cache")
		return
	}

	warm := make(map[string]geocoding.Result, len(entries))
	for _, e := range entries {
		warm[e.Key] = geocoding.Result{
			Label:    e.Label,
			Postcode: e.Postcode,
			Point:    orb.Point{e.Longitude, e.Latitude},
		}
	}
	geocoder.Warm(warm)
}
