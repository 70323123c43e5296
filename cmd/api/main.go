package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/integral-arena-api/internal/config"
	"github.com/yourusername/integral-arena-api/internal/handler"
	"github.com/yourusername/integral-arena-api/internal/middleware"
	pgRepo "github.com/yourusername/integral-arena-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/integral-arena-api/internal/repository/redis"
	"github.com/yourusername/integral-arena-api/internal/service"
	"github.com/yourusername/integral-arena-api/internal/service/mathjudge"
	"github.com/yourusername/integral-arena-api/internal/worker"
	"github.com/yourusername/integral-arena-api/pkg/auth"
	"github.com/yourusername/integral-arena-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	duelRoomRepo := pgRepo.NewDuelRoomRepo(db)
	queueRepo := pgRepo.NewQueueRepo(db)
	tournamentRepo := pgRepo.NewTournamentRepo(db)
	problemRepo := pgRepo.NewProblemRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем сервис проверки токенов
	jwtService, err := auth.NewJWTService(cfg.Auth.JWTSecret)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Выбираем судью ответов
	var judge mathjudge.Judge
	if cfg.Judge.Mode == "remote" {
		judge = mathjudge.NewRemoteJudge(cfg.Judge.RemoteURL, time.Duration(cfg.Judge.TimeoutMs)*time.Millisecond)
		log.Printf("Судья ответов: внешний сервис %s", cfg.Judge.RemoteURL)
	} else {
		judge = mathjudge.NewLocalJudge()
		log.Println("Судья ответов: локальное нормализующее сравнение")
	}

	// Инициализируем сервисы
	duelService := service.NewDuelService(duelRoomRepo, problemRepo, cacheRepo, judge, &cfg.Game)
	matchmakingService := service.NewMatchmakingService(queueRepo, duelRoomRepo, &cfg.Game)
	tournamentService := service.NewTournamentService(tournamentRepo, problemRepo, cacheRepo, judge, &cfg.Game)

	// Запускаем фоновую чистку очереди и брошенных комнат
	sweeper := worker.NewSweeper(matchmakingService, duelRoomRepo, tournamentRepo, &cfg.Game)
	if err := sweeper.Start(); err != nil {
		log.Printf("Failed to start sweeper: %v", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	// Инициализируем обработчики
	duelHandler := handler.NewDuelHandler(duelService)
	matchmakingHandler := handler.NewMatchmakingHandler(matchmakingService)
	tournamentHandler := handler.NewTournamentHandler(tournamentService)
	problemHandler := handler.NewProblemHandler(problemRepo)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)
	globalLimit := rateLimiter.LimitByIP(middleware.DefaultGlobalRateLimitConfig())
	pollLimit := rateLimiter.Limit(middleware.DefaultPollRateLimitConfig())
	mutationLimit := rateLimiter.Limit(middleware.DefaultMutationRateLimitConfig())

	isProduction := gin.Mode() == gin.ReleaseMode

	router := gin.Default()

	// В production (GIN_MODE=release): не доверяем прокси (защита от IP spoofing)
	// В development: доверяем localhost
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Настраиваем маршруты API: общий потолок по IP, затем авторизация
	api := router.Group("/api")
	api.Use(globalLimit, authMiddleware.RequireAuth())
	{
		// Дуэли 1 на 1
		duels := api.Group("/duels")
		{
			duels.POST("", mutationLimit, duelHandler.CreateDuel)

			room := duels.Group("/:code")
			room.Use(middleware.ExtractRoomCode("code", "roomCode"))
			{
				room.GET("", pollLimit, duelHandler.GetGameState)
				room.POST("/join", mutationLimit, duelHandler.JoinDuel)
				room.POST("/question", mutationLimit, duelHandler.NextQuestion)
				room.POST("/answer", mutationLimit, duelHandler.SubmitAnswer)
				room.POST("/tick", pollLimit, duelHandler.TickTimer)
				room.POST("/abandon", mutationLimit, duelHandler.AbandonDuel)
			}
		}

		// Автоподбор соперника
		matchmaking := api.Group("/matchmaking")
		{
			matchmaking.POST("/queue", mutationLimit, matchmakingHandler.JoinQueue)
			matchmaking.GET("/queue", pollLimit, matchmakingHandler.PollQueueStatus)
			matchmaking.DELETE("/queue", mutationLimit, matchmakingHandler.LeaveQueue)
		}

		// Турниры
		tournaments := api.Group("/tournaments")
		{
			tournaments.POST("", mutationLimit, tournamentHandler.CreateTournament)

			// Матчи адресуются UUID, а не 6-значным кодом комнаты
			matches := tournaments.Group("/matches/:match_uid")
			{
				matches.POST("/question", mutationLimit, tournamentHandler.NextMatchQuestion)
				matches.POST("/answer", mutationLimit, tournamentHandler.SubmitMatchAnswer)
			}

			troom := tournaments.Group("/:code")
			troom.Use(middleware.ExtractRoomCode("code", "roomCode"))
			{
				troom.GET("", pollLimit, tournamentHandler.GetTournament)
				troom.POST("/join", mutationLimit, tournamentHandler.JoinTournament)
				troom.POST("/start", mutationLimit, tournamentHandler.StartTournament)
				troom.GET("/matches", pollLimit, tournamentHandler.GetMatches)
				troom.GET("/standings", pollLimit, tournamentHandler.GetStandings)
				troom.POST("/abandon", mutationLimit, tournamentHandler.AbandonTournament)
			}
		}

		// Каталог задач
		problems := api.Group("/problems")
		{
			problems.GET("", problemHandler.ListProblems)
			problems.GET("/stats", problemHandler.GetCatalogStats)
			problems.GET("/export", problemHandler.ExportProblems)
			problems.POST("", mutationLimit, problemHandler.CreateProblem)
			problems.POST("/bulk", mutationLimit, problemHandler.BulkUploadProblems)
			problems.POST("/import", mutationLimit, problemHandler.ImportProblems)
		}
	}

	// Настраиваем HTTP сервер
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// Ожидаем сигнал остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	sweeper.Stop()

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
