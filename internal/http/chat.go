package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/epubreader/internal/chat"
	"github.com/mrlokans/epubreader/internal/crypto"
	"github.com/mrlokans/epubreader/internal/entities"
)

// ChatController relays questions about the current page to the AI service
// and streams the answer back as server-sent events.
type ChatController struct {
	client      *chat.Client
	store       SettingsStore
	credentials *crypto.Encryptor
}

func NewChatController(client *chat.Client, store SettingsStore, credentials *crypto.Encryptor) *ChatController {
	return &ChatController{
		client:      client,
		store:       store,
		credentials: credentials,
	}
}

// Chat handles POST /api/chat.
//
// Events: "message" with {"delta": "..."} per fragment, then either "done"
// or a single "error" with {"error": "..."}.
func (cc *ChatController) Chat(c *gin.Context) {
	var req chat.Request
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	client, model, err := cc.configuredClient(c)
	if err != nil {
		respondInternalError(c, err, "load ai key")
		return
	}
	if req.Model == "" {
		req.Model = model
	}

	stream, err := client.Stream(ctx, req)
	if err != nil {
		cc.respondChatError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				c.SSEvent("done", gin.H{})
				c.Writer.Flush()
				return
			}
			if chunk.Err != nil {
				log.Printf("Chat stream failed: %v", chunk.Err)
				c.SSEvent("error", gin.H{"error": chunk.Err.Error()})
				c.Writer.Flush()
				return
			}
			c.SSEvent("message", gin.H{"delta": chunk.Delta})
			c.Writer.Flush()
		}
	}
}

// configuredClient returns the client bound to the stored key and the
// stored model preference.
func (cc *ChatController) configuredClient(c *gin.Context) (*chat.Client, string, error) {
	ctx := c.Request.Context()
	stored, err := cc.store.GetValue(ctx, entities.SettingKeyChatAPIKey, "")
	if err != nil {
		return nil, "", err
	}
	key := stored
	if cc.credentials != nil && stored != "" {
		key, err = cc.credentials.Decrypt(stored)
		if err != nil {
			// A key sealed with a different secret is as good as none.
			log.Printf("Stored AI key could not be opened: %v", err)
			key = ""
		}
	}
	model, err := cc.store.GetValue(ctx, entities.SettingKeyChatModel, "")
	if err != nil {
		return nil, "", err
	}
	return cc.client.WithAPIKey(key), model, nil
}

func (cc *ChatController) respondChatError(c *gin.Context, err error) {
	var apiErr *chat.APIError
	switch {
	case errors.Is(err, chat.ErrMissingCredential):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "missing_credential"})
	case errors.As(err, &apiErr) && apiErr.Unauthorized():
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: apiErr.Error(), Code: "invalid_credential"})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: apiErr.Error(), Code: "upstream_error"})
	default:
		log.Printf("Chat request failed: %v", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "could not reach the AI service", Code: "network_error"})
	}
}
