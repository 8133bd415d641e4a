package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Shared collaborators. The council is swappable at runtime via the config
// endpoint; everything else is read-only after startup.
var (
	pricing    *PriceTable
	gateway    *Client
	barrier    *Barrier
	modelCache *ModelCache

	councilMu sync.RWMutex
	council   *Council
)

func main() {
	cfg := LoadConfig()

	pricing = NewPriceTable(cfg.Prices)
	gateway = NewClient(OpenRouterAPIKey, OpenRouterAPIURL, pricing)
	barrier = NewBarrier(semaphore.NewWeighted(int64(cfg.MaxInFlight)), 0)
	modelCache = NewModelCache(ModelCatalogTTL)
	council = NewCouncil(cfg, gateway.Query, barrier)

	router := NewRouter()

	log.Println("Starting LLM Council backend on port 8001...")
	if err := router.Run(":8001"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter() *gin.Engine {
	router := gin.Default()

	// Request size limit middleware
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBodySize)
		c.Next()
	})

	// CORS middleware with dynamic origin validation
	router.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			// In production, use environment-configured origins
			if len(CORSAllowedOrigins) > 0 && CORSAllowedOrigins[0] != "" {
				for _, allowedOrigin := range CORSAllowedOrigins {
					if origin == allowedOrigin {
						return true
					}
				}
				return false
			}
			// In development, allow any localhost/127.0.0.1 origin
			return len(origin) > 0 && (len(origin) >= 16 && origin[:16] == "http://localhost" ||
				len(origin) >= 14 && origin[:14] == "http://127.0.0")
		},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/", healthCheck)
	router.GET("/api/config", getConfigHandler)
	router.POST("/api/config", updateConfigHandler)
	router.GET("/api/models", getModelsHandler)
	router.POST("/api/estimate-cost", estimateCostHandler)
	router.GET("/api/conversations", listConversationsHandler)
	router.POST("/api/conversations", createConversationHandler)
	router.GET("/api/conversations/:id", getConversationHandler)
	router.DELETE("/api/conversations/:id", deleteConversationHandler)
	router.GET("/api/conversations/:id/export", exportConversationHandler)
	router.POST("/api/conversations/:id/message", sendMessageHandler)
	router.POST("/api/conversations/:id/message/stream", sendMessageStreamHandler)
	router.POST("/api/fetch-url", fetchURLHandler)
	return router
}

// currentCouncil returns the active council under the read lock.
func currentCouncil() *Council {
	councilMu.RLock()
	defer councilMu.RUnlock()
	return council
}

// healthCheck returns a simple health check response.
// GET / - Returns service status information.
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "LLM Council API",
	})
}

// getConfigHandler returns the active council composition.
// GET /api/config
func getConfigHandler(c *gin.Context) {
	co := currentCouncil()
	c.JSON(http.StatusOK, gin.H{
		"members":  co.Members,
		"chairman": co.Chairman,
	})
}

// updateConfigHandler replaces the council composition at runtime.
// POST /api/config - Body: {"members": [...], "chairman": "..."}
func updateConfigHandler(c *gin.Context) {
	var request ConfigUpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	councilMu.Lock()
	replacement := NewCouncil(CouncilConfig{
		Members:       request.Members,
		Chairman:      request.Chairman,
		TitleModel:    council.TitleModel,
		AllowedModels: council.AllowedModels,
	}, council.query, council.barrier)
	if err := replacement.Validate(); err != nil {
		councilMu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	council = replacement
	councilMu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"members":  replacement.Members,
		"chairman": replacement.Chairman,
	})
}

// getModelsHandler returns the available-model catalog with caching.
// GET /api/models - Query params: ?refresh=true (force cache refresh)
func getModelsHandler(c *gin.Context) {
	forceRefresh := c.Query("refresh") == "true"

	if !forceRefresh {
		if cached, ok := modelCache.Get(); ok {
			c.JSON(http.StatusOK, gin.H{
				"models":       cached,
				"last_updated": modelCache.LastUpdated(),
			})
			return
		}
	}

	models, err := FetchAvailableModels(c.Request.Context(), OpenRouterModelsURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to fetch models: %v", err),
		})
		return
	}
	modelCache.Set(models)

	c.JSON(http.StatusOK, gin.H{
		"models":       models,
		"last_updated": time.Now(),
	})
}

// estimateCostHandler estimates what a query would cost before running it.
// POST /api/estimate-cost - Pure computation over the price table; no model
// is ever called.
func estimateCostHandler(c *gin.Context) {
	var request CostEstimateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	co := currentCouncil()
	models := make([]string, 0, len(co.Members)+1)
	for _, m := range co.Members {
		models = append(models, m.Model)
	}
	models = append(models, co.Chairman)

	c.JSON(http.StatusOK, pricing.EstimateQueryCost(models, request.Content, 500))
}

// listConversationsHandler lists all conversations with metadata only.
// GET /api/conversations
func listConversationsHandler(c *gin.Context) {
	conversations, err := ListConversations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to list conversations: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// createConversationHandler creates a new conversation snapshotting the
// active council.
// POST /api/conversations
func createConversationHandler(c *gin.Context) {
	co := currentCouncil()
	conversation, err := CreateConversation(uuid.New().String(), co.Members, co.Chairman)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to create conversation: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// getConversationHandler gets a specific conversation by ID.
// GET /api/conversations/:id
func getConversationHandler(c *gin.Context) {
	conversation, err := GetConversation(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// deleteConversationHandler removes a conversation.
// DELETE /api/conversations/:id
func deleteConversationHandler(c *gin.Context) {
	if err := DeleteConversation(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// exportConversationHandler renders a conversation as Markdown.
// GET /api/conversations/:id/export
func exportConversationHandler(c *gin.Context) {
	conversation, err := GetConversation(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(ExportToMarkdown(conversation)))
}

// historyMessages flattens prior turns into chat messages for Stage 1
// context: user content plus the chairman's final answer per assistant turn.
func historyMessages(conversation *Conversation) []ChatMessage {
	var history []ChatMessage
	for _, msg := range conversation.Messages {
		switch msg.Role {
		case "user":
			history = append(history, ChatMessage{Role: "user", Content: msg.Content})
		case "assistant":
			if msg.Stage3 != nil && msg.Stage3.Response != "" {
				history = append(history, ChatMessage{Role: "assistant", Content: msg.Stage3.Response})
			}
		}
	}
	return history
}

// persistFunc builds the persistence hand-off for one exchange: the debate is
// committed whenever Stage 1 produced anything, verdict or not.
func persistFunc(conversationID string) func(res *ExchangeResult, runErr error) {
	return func(res *ExchangeResult, runErr error) {
		if res == nil || len(res.Stage1) == 0 {
			return
		}
		var stage3 *ModelResult
		if runErr == nil {
			stage3 = &res.Stage3
		}
		if err := AddAssistantMessage(conversationID, res, stage3); err != nil {
			log.Printf("Failed to save exchange for conversation %s: %v", conversationID, err)
		}
	}
}

// sendMessageHandler sends a message and runs the full deliberation,
// returning every stage at once.
// POST /api/conversations/:id/message
// Use sendMessageStreamHandler for the SSE streaming version.
func sendMessageHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: content is required"})
		return
	}

	conversation, err := GetConversation(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	co := currentCouncil()
	if err := co.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isFirstMessage := len(conversation.Messages) == 0
	history := historyMessages(conversation)

	if err := AddUserMessage(conversationID, request.Content, request.Attachments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to add user message: %v", err),
		})
		return
	}

	// Generate title if first message (run in background)
	if isFirstMessage {
		go func() {
			title := co.GenerateTitle(context.Background(), request.Content)
			if err := UpdateConversationTitle(conversationID, title); err != nil {
				log.Printf("Failed to update title: %v", err)
			}
		}()
	}

	ex := &Exchange{
		ID:          uuid.New().String(),
		History:     history,
		Query:       request.Content,
		Attachments: request.Attachments,
		Persist:     persistFunc(conversationID),
	}
	res, err := co.RunExchange(context.Background(), ex)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Council process failed: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, SendMessageResponse{
		Stage1:   res.Stage1,
		Stage2:   res.Stage2,
		Stage25:  res.Stage25,
		Stage3:   res.Stage3,
		Metadata: res.Metadata,
	})
}

// sendMessageStreamHandler sends a message and streams deliberation progress
// via SSE. Event order matches the orchestrator exactly; if the client
// disconnects mid-stream the exchange still runs to completion and persists.
// POST /api/conversations/:id/message/stream
func sendMessageStreamHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: content is required"})
		return
	}

	conversation, err := GetConversation(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	co := currentCouncil()
	if err := co.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isFirstMessage := len(conversation.Messages) == 0
	history := historyMessages(conversation)

	if err := AddUserMessage(conversationID, request.Content, request.Attachments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to add user message: %v", err),
		})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	em := NewEmitter()
	ex := &Exchange{
		ID:          uuid.New().String(),
		History:     history,
		Query:       request.Content,
		Attachments: request.Attachments,
		Emitter:     em,
		Persist:     persistFunc(conversationID),
	}

	// Start title generation in background if first message
	if isFirstMessage {
		titleCh := make(chan string, 1)
		ex.TitleCh = titleCh
		go func() {
			title := co.GenerateTitle(context.Background(), request.Content)
			if err := UpdateConversationTitle(conversationID, title); err != nil {
				log.Printf("Failed to update title: %v", err)
			}
			titleCh <- title
			close(titleCh)
		}()
	}

	go func() {
		defer em.Close()
		if _, err := co.RunExchange(context.Background(), ex); err != nil {
			log.Printf("Exchange %s failed: %v", ex.ID, err)
		}
	}()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case ev, ok := <-em.Events():
			if !ok {
				return
			}
			if err := sse.Encode(c.Writer, sse.Event{Data: ev}); err != nil {
				em.Detach()
				return
			}
			c.Writer.Flush()
		case <-clientGone:
			// The exchange keeps running and persists; we just stop
			// delivering events.
			em.Detach()
			return
		}
	}
}

// fetchURLHandler fetches a URL and extracts its readable text for use as a
// message attachment.
// POST /api/fetch-url - Body: {"url": "https://..."}
func fetchURLHandler(c *gin.Context) {
	var request struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	content, err := FetchURLContent(c.Request.Context(), request.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to fetch URL content: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}
