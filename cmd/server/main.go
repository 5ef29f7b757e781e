package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/mindflow/companion-backend/internal/config"
	"github.com/mindflow/companion-backend/internal/database"
	"github.com/mindflow/companion-backend/internal/handler"
	"github.com/mindflow/companion-backend/internal/notify"
	"github.com/mindflow/companion-backend/internal/queue"
	"github.com/mindflow/companion-backend/internal/repository"
	"github.com/mindflow/companion-backend/internal/router"
	"github.com/mindflow/companion-backend/internal/service"
	"github.com/mindflow/companion-backend/internal/verification"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	client, db, err := database.Open(cfg.MongoURI, cfg.MongoAuthSource, cfg.MongoDB)
	if err != nil {
		log.Fatalf("mongodb connect failed: %v", err)
	}
	defer func() {
		if err := database.Close(client); err != nil {
			log.Printf("mongodb disconnect: %v", err)
		}
	}()

	users := repository.NewUserRepo(db)
	caregivers := repository.NewCaregiverRepo(db)
	notifications := repository.NewNotificationRepo(db)

	// Verification codes live in Redis when available, in memory
	// otherwise. Both enforce the same TTL and one-time-use rules.
	codes := verification.NewStore(config.NewRedisClient())

	conns := service.NewConnectionManager(users, caregivers)
	sync := service.NewSyncService(users, caregivers)

	mailer := notify.NewMailer(&cfg)
	pusher := notify.NewPusher(cfg.FCMServerKey)

	auth := handler.NewAuthHandler(&cfg, users, codes, mailer, conns)
	caregiverAuth := handler.NewCaregiverHandler(&cfg, caregivers, users, codes, mailer, conns)
	caregiverSync := handler.NewCaregiverSyncHandler(caregivers, users, sync)
	user := handler.NewUserHandler(users, caregivers, conns)
	userSync := handler.NewUserSyncHandler(users)
	notification := handler.NewNotificationHandler(users, notifications, pusher)
	email := handler.NewEmailHandler(mailer)

	// Background consumer mirrors dispatched notifications into a local
	// audit log. Runs its own reconnect loop.
	go func() {
		if err := queue.StartDispatchConsumer(); err != nil {
			log.Printf("dispatch consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e, email)
	router.RegisterAuth(e, auth, cfg.JWTSecret, users)
	router.RegisterUser(e, user, userSync, cfg.JWTSecret, users, caregivers)
	router.RegisterCaregiver(e, caregiverAuth, caregiverSync)
	router.RegisterNotifications(e, notification, cfg.JWTSecret, users)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
