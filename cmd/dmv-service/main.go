package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dmv-service/internal/auth"
	"dmv-service/internal/config"
	httpapi "dmv-service/internal/http"
	"dmv-service/internal/registry"
	"dmv-service/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log.Level)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("auth.jwt_secret is required (set DMV_AUTH_JWT_SECRET)")
	}

	seed, err := registry.LoadStatic(cfg.Registry.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Str("seed_file", cfg.Registry.SeedFile).Msg("failed to load registry seed")
	}
	reg := registry.NewCached(seed, cfg.Registry.CacheTTL())

	sessions := service.NewSessionStore(cfg.Auth.SessionTTL())
	dmvService := service.NewDMVService(sessions, reg, log)
	handler := httpapi.NewHandler(dmvService, cfg, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Disposition"},
	}))

	handler.Register(r, auth.Middleware(cfg.Auth.JWTSecret))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("starting dmv-service")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
