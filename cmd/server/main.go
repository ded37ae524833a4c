package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/psantanna/webchat/internal/api"
	"github.com/psantanna/webchat/internal/config"
	"github.com/psantanna/webchat/internal/database"
	"github.com/psantanna/webchat/internal/server"
	"github.com/psantanna/webchat/internal/stats"
)

const defaultSigningKey = "d2ViY2hhdC1kZXYtc2lnbmluZy1rZXktbm90LWZvci1wcm9k"

const (
	retentionInterval = time.Hour
	messageRetention  = 7 * 24 * time.Hour
	sessionRetention  = 24 * time.Hour
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
	defaultRooms   stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Var(&defaultRooms, "default-rooms", "comma-separated list of rooms that always exist")
	flag.Parse()

	logger := log.New(os.Stderr, "[webchat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, defaultRooms)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, dbConn, statsUpdater, cfg.DefaultRooms)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}
	chatServer.LoadPersistedRooms()

	srv := api.NewWebchatApp(mux, logger, chatServer, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	retentionStop := make(chan struct{})
	go runRetention(logger, dbConn, retentionStop)
	defer close(retentionStop)

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

// runRetention prunes old messages and stale user sessions on a fixed cadence.
func runRetention(logger *log.Logger, db database.ChatRepository, stop <-chan struct{}) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			messages, sessions, err := db.DeleteOldData(now.Add(-messageRetention), now.Add(-sessionRetention))
			if err != nil {
				logger.Println("retention:", err)
				continue
			}
			if messages > 0 || sessions > 0 {
				logger.Printf("retention: removed %d messages, %d sessions", messages, sessions)
			}
		case <-stop:
			return
		}
	}
}
