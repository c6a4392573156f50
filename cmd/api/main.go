package main

import (
	"context"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"commsync/internal/adapter/api"
	"commsync/internal/adapter/api/handler"
	apimiddleware "commsync/internal/adapter/api/middleware"
	"commsync/internal/adapter/api/router"
	"commsync/internal/adapter/repository"
	"commsync/internal/infrastructure/eventbus"
	"commsync/internal/infrastructure/firebase"
	"commsync/internal/infrastructure/ratelimit"
	"commsync/internal/infrastructure/websocket"
	"commsync/internal/usecase"
	"commsync/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption

	// Credentials come from the environment in production and from a key
	// file in local development.
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); serviceAccountPath != "" {
		if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
		}
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	conversationRepo := repository.NewFirestoreConversationRepository(firestoreClient)
	ticketRepo := repository.NewFirestoreTicketRepository(firestoreClient)

	firebaseAuthClient := firebase.NewAuthClient(authClient)

	bus := eventbus.New()
	rateLimiter := ratelimit.NewRateLimiter()

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)
	gateway := websocket.NewGateway(bus, wsManager)

	conversationUseCase := usecase.NewConversationUseCase(conversationRepo, userRepo, bus, rateLimiter)
	ticketUseCase := usecase.NewTicketUseCase(ticketRepo, userRepo, bus, rateLimiter)
	communicationUseCase := usecase.NewCommunicationUseCase(conversationRepo, ticketRepo, userRepo)

	handler.Setup(conversationUseCase, ticketUseCase, communicationUseCase)
	handler.SetupHealthHandler(firebaseAuthClient)

	e := echo.New()

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	generalLimiter := apimiddleware.NewIPRateLimiter(60, time.Minute)
	e.Use(generalLimiter.Middleware())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)
	adminMiddleware := apimiddleware.NewAdminMiddleware(userRepo)

	wsHandler := handler.NewWebSocketHandler(wsManager, gateway, firebaseAuthClient, userRepo)

	router.Setup(e, authMiddleware, adminMiddleware)
	router.SetupWebSocketRouter(e, wsHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
