// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/config"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jason-s-yu/trivia/internal/events"
	"github.com/jason-s-yu/trivia/internal/gateway"
	"github.com/jason-s-yu/trivia/internal/handlers"
	"github.com/jason-s-yu/trivia/internal/lobby"
	"github.com/jason-s-yu/trivia/internal/middleware"
	"github.com/jason-s-yu/trivia/internal/questions"
	"github.com/jason-s-yu/trivia/internal/rounds"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(os.Getenv("TRIVIA_CONFIG"))
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := auth.Init(); err != nil {
		logger.Fatalf("failed to initialise auth: %v", err)
	}

	bank, err := questions.Load(cfg.QuestionBank)
	if err != nil {
		logger.Fatalf("failed to load question bank: %v", err)
	}
	logger.WithField("rounds", bank.Rounds()).Info("question bank loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	var gw gateway.Gateway
	switch cfg.Gateway {
	case config.GatewayPostgres:
		if err := database.ConnectDB(ctx, cfg.DatabaseURL, logger); err != nil {
			logger.Fatalf("failed to connect to database: %v", err)
		}
		defer database.DB.Close()
		gw = database.NewGateway(database.DB, clock)
	default:
		gw = gateway.NewMemory(clock)
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		gw = cache.NewGateway(gw, rdb, cfg.CacheTTL, "", logger)
		logger.WithField("ttl", cfg.CacheTTL).Info("redis snapshot cache enabled")
	}

	var pub events.Publisher = events.NewLogPublisher(logger)
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(events.DefaultNATSConfig(cfg.NATSURL), logger)
		if err != nil {
			logger.Fatalf("failed to connect to NATS: %v", err)
		}
		pub = np
	}
	defer pub.Close()

	players := gateway.NewPlayersPoller(gw, clock, cfg.Poll.Players, logger)
	go players.Run(ctx)

	recorder := rounds.NewRecorder(gw, clock, pub, logger)
	recorder.Start(ctx)
	defer recorder.Stop()

	lobbies := lobby.NewLobbyStore(ctx, lobby.Deps{
		Gateway:    gw,
		Bank:       bank,
		Players:    players,
		Publisher:  pub,
		Clock:      clock,
		Logger:     logger,
		Session:    cfg.Session,
		Policy:     cfg.Rounds,
		PlayerPoll: cfg.Poll.Player,
	})
	defer lobbies.CloseAll()
	if cfg.LobbyIdle > 0 {
		go lobbies.RunEviction(ctx, time.Minute, cfg.LobbyIdle)
	}

	srv := &handlers.Server{
		Lobbies:   lobbies,
		Gateway:   gw,
		Languages: cfg.Languages,
		Accounts:  database.DB != nil,
		Log:       logger,
	}

	var handler http.Handler = srv.Routes()
	handler = middleware.LogMiddleware(logger)(handler)
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(handler)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("http shutdown failed")
		}
	}()

	logger.Infof("Running on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}
