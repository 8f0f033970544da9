package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/flack-chat/flack-server/internal/api"
	"github.com/flack-chat/flack-server/internal/cache"
	"github.com/flack-chat/flack-server/internal/config"
	"github.com/flack-chat/flack-server/internal/database"
	"github.com/flack-chat/flack-server/internal/server"
	"github.com/flack-chat/flack-server/internal/stats"
	"github.com/flack-chat/flack-server/internal/storage"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	migrationsPath string
	redisAddr      string
	redisPassword  string
	redisDB        int
	s3Endpoint     string
	s3Bucket       string
	s3AccessKey    string
	s3SecretKey    string
	s3UseSSL       bool
	fileBaseURL    string
	allowedOrigins stringSliceFlag
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	flag.StringVar(&addr, "addr", envDefault("FLACK_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envDefault("FLACK_DSN",
		"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&migrationsPath, "migrations", envDefault("FLACK_MIGRATIONS", "db/migrations"), "schema migrations directory")
	flag.StringVar(&redisAddr, "redis-addr", os.Getenv("FLACK_REDIS_ADDR"), "redis address (empty disables the token cache)")
	flag.StringVar(&redisPassword, "redis-password", os.Getenv("FLACK_REDIS_PASSWORD"), "redis password")
	redisDB, _ = strconv.Atoi(envDefault("FLACK_REDIS_DB", "0"))
	flag.StringVar(&s3Endpoint, "s3-endpoint", os.Getenv("FLACK_S3_ENDPOINT"), "object store endpoint")
	flag.StringVar(&s3Bucket, "s3-bucket", envDefault("FLACK_S3_BUCKET", "flack-files"), "object store bucket")
	flag.StringVar(&s3AccessKey, "s3-access-key", os.Getenv("FLACK_S3_ACCESS_KEY"), "object store access key")
	flag.StringVar(&s3SecretKey, "s3-secret-key", os.Getenv("FLACK_S3_SECRET_KEY"), "object store secret key")
	flag.BoolVar(&s3UseSSL, "s3-use-ssl", false, "use TLS for the object store")
	flag.StringVar(&fileBaseURL, "file-base-url", os.Getenv("FLACK_FILE_BASE_URL"), "public gateway prefix for file URLs")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[flack] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}
	cfg.MigrationsPath = migrationsPath
	cfg.RedisAddr = redisAddr
	cfg.RedisPassword = redisPassword
	cfg.RedisDB = redisDB
	cfg.S3Endpoint = s3Endpoint
	cfg.S3Bucket = s3Bucket
	cfg.S3AccessKey = s3AccessKey
	cfg.S3SecretKey = s3SecretKey
	cfg.S3UseSSL = s3UseSSL
	cfg.FileBaseURL = fileBaseURL

	dbConn, err := database.NewPgFlackRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(cfg.MigrationsPath); err != nil {
		logger.Fatal("migrate:", err)
	}

	var tokenCache *cache.TokenCache
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisCache.Close()
		tokenCache = cache.NewTokenCache(redisCache)
		logger.Println("token cache enabled on", cfg.RedisAddr)
	}

	fileStore, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
		BaseURL:   cfg.FileBaseURL,
	})
	if err != nil {
		logger.Fatal("file store:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	registry := server.NewGroupRegistry(logger)

	chatServer, err := server.NewChatServer(logger, dbConn, tokenCache, registry, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewFlackApp(mux, logger, chatServer, dbConn, tokenCache, fileStore, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
