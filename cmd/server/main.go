package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gigglechat/giggle/internal/api"
	"github.com/gigglechat/giggle/internal/auth"
	"github.com/gigglechat/giggle/internal/chat"
	"github.com/gigglechat/giggle/internal/database"
	"github.com/gigglechat/giggle/internal/moderation"
	"github.com/gigglechat/giggle/internal/relationship"
	internalWs "github.com/gigglechat/giggle/internal/websocket"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	env := os.Getenv("ENV")
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	auth.InitJWTKey([]byte(jwtSecret))
	if raw := os.Getenv("TOKEN_TTL_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("Invalid TOKEN_TTL_HOURS: %v", err)
		}
		auth.SetTokenTTL(time.Duration(hours) * time.Hour)
	}

	store, err := openStore()
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer store.Close()

	// Built-in assistant identity; exempt from moderation and blocking.
	assistantID := uuid.Nil
	if raw := os.Getenv("ASSISTANT_ID"); raw != "" {
		assistantID, err = uuid.Parse(raw)
		if err != nil {
			log.Fatalf("Invalid ASSISTANT_ID: %v", err)
		}
	}

	var classifier moderation.Classifier
	if url := os.Getenv("CLASSIFIER_URL"); url != "" {
		classifier = moderation.NewHTTPClassifier(url, os.Getenv("CLASSIFIER_API_KEY"))
	} else {
		log.Println("Warning: CLASSIFIER_URL not set, moderation runs on the lexical filter only")
	}

	var replies moderation.ReplyGenerator
	if url := os.Getenv("REPLY_URL"); url != "" {
		replies = moderation.NewHTTPReplyGenerator(url, os.Getenv("REPLY_API_KEY"))
	}

	classifierTimeout := moderation.DefaultTimeout
	if raw := os.Getenv("CLASSIFIER_TIMEOUT_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("Invalid CLASSIFIER_TIMEOUT_MS: %v", err)
		}
		classifierTimeout = time.Duration(ms) * time.Millisecond
	}

	// Realtime fan-out
	wsManager := internalWs.NewManager()
	go wsManager.Run()

	strikes := chat.NewStrikeLedger()
	engine := chat.NewEngine(chat.EngineConfig{
		Store:            store,
		Transport:        chat.NewStoreTransport(store),
		Pipeline:         moderation.NewPipeline(classifier, classifierTimeout),
		Strikes:          strikes,
		Replies:          replies,
		Publisher:        wsManager,
		AssistantID:      assistantID,
		AssistantPersona: os.Getenv("ASSISTANT_PERSONA"),
	})
	relationships := relationship.NewService(store, strikes, wsManager)
	if assistantID != uuid.Nil {
		relationships.SetAssistant(assistantID)
	}

	authHandler := api.NewAuthHandler(store)
	messageHandler := api.NewMessageHandler(store, engine)
	contactHandler := api.NewContactHandler(relationships)

	router := gin.Default()

	allowedOrigins := strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes (no authentication required)
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Protected routes (authentication required)
	authorized := router.Group("/api")
	authorized.Use(api.AuthMiddleware())
	{
		authorized.GET("/auth/me", authHandler.GetMe)
		authorized.GET("/users", authHandler.GetAllUsers)

		// Message routes
		authorized.POST("/messages", messageHandler.SendMessage)
		authorized.GET("/messages/conversation/:userID", messageHandler.GetConversation)
		authorized.PUT("/messages/:messageID/read", messageHandler.MarkMessageAsRead)
		authorized.POST("/messages/:messageID/reactions", messageHandler.ReactToMessage)

		// Relationship routes
		authorized.GET("/contacts", contactHandler.GetContacts)
		authorized.POST("/requests", contactHandler.SendFriendRequest)
		authorized.GET("/requests", contactHandler.GetIncomingRequests)
		authorized.PUT("/requests/:requestID", contactHandler.RespondToRequest)
		authorized.POST("/blocks", contactHandler.BlockUser)
		authorized.DELETE("/blocks", contactHandler.UnblockUser)
		authorized.GET("/blocks", contactHandler.GetBlockedUsers)

		// WebSocket route with token accepted in the URL parameter,
		// since browser WebSocket clients cannot set headers.
		authorized.GET("/ws", func(c *gin.Context) {
			if _, exists := c.Get("userID"); exists {
				wsManager.HandleWebSocket(c)
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		})
	}

	router.GET("/api/ws-token", wsTokenRoute(wsManager))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}

// wsTokenRoute authenticates websocket connections via a token query
// parameter and hands them to the manager.
func wsTokenRoute(wsManager *internalWs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenParam := c.Query("token")
		if tokenParam == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := auth.ValidateToken(tokenParam)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		userUUID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID format in token"})
			return
		}

		c.Set("userID", userUUID)
		c.Set("username", claims.Username)
		wsManager.HandleWebSocket(c)
	}
}

func openStore() (database.Store, error) {
	storeTypeStr := os.Getenv("DB_TYPE")
	if storeTypeStr == "" {
		storeTypeStr = "postgres"
	}
	storeType := database.StoreType(storeTypeStr)

	if storeType == database.InMemory {
		return database.NewStore(storeType, "")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		dbName := os.Getenv("DB_NAME")
		dbUser := os.Getenv("DB_USER")
		dbPass := os.Getenv("DB_PASSWORD")

		if dbHost == "" || dbName == "" || dbUser == "" {
			return nil, fmt.Errorf("database connection details missing: set DATABASE_URL or individual DB_* variables")
		}

		dbURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			dbUser, dbPass, dbHost, dbPort, dbName,
		)
	}

	return database.NewStore(storeType, dbURL)
}
