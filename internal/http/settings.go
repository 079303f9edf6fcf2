package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/epubreader/internal/appearance"
	"github.com/mrlokans/epubreader/internal/crypto"
	"github.com/mrlokans/epubreader/internal/entities"
)

// SettingsController manages reader appearance and the AI credential.
type SettingsController struct {
	appearance  *appearance.State
	store       SettingsStore
	credentials *crypto.Encryptor
}

func NewSettingsController(state *appearance.State, store SettingsStore, credentials *crypto.Encryptor) *SettingsController {
	return &SettingsController{
		appearance:  state,
		store:       store,
		credentials: credentials,
	}
}

// GetAppearance handles GET /api/settings/appearance
func (sc *SettingsController) GetAppearance(c *gin.Context) {
	c.JSON(http.StatusOK, sc.appearance.Get())
}

// UpdateAppearance handles PUT /api/settings/appearance. Values are snapped
// to their step, so the response may differ slightly from the request.
func (sc *SettingsController) UpdateAppearance(c *gin.Context) {
	req := sc.appearance.Get()
	if !bindJSON(c, &req) {
		return
	}
	if err := sc.appearance.Set(req); err != nil {
		respondValidationError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc.appearance.Get())
}

// AIKeyRequest is the body of PUT /api/settings/ai-key.
type AIKeyRequest struct {
	APIKey string `json:"api_key" validate:"required,max=512"`
	Model  string `json:"model" validate:"max=128"`
}

// GetAIKey handles GET /api/settings/ai-key. The key itself is never returned.
func (sc *SettingsController) GetAIKey(c *gin.Context) {
	ctx := c.Request.Context()
	key, err := sc.store.GetValue(ctx, entities.SettingKeyChatAPIKey, "")
	if err != nil {
		respondInternalError(c, err, "get ai key")
		return
	}
	model, err := sc.store.GetValue(ctx, entities.SettingKeyChatModel, "")
	if err != nil {
		respondInternalError(c, err, "get ai model")
		return
	}
	c.JSON(http.StatusOK, gin.H{"configured": key != "", "model": model})
}

// SetAIKey handles PUT /api/settings/ai-key
func (sc *SettingsController) SetAIKey(c *gin.Context) {
	var req AIKeyRequest
	if !bindJSON(c, &req) {
		return
	}

	value := req.APIKey
	if sc.credentials != nil {
		sealed, err := sc.credentials.Encrypt(req.APIKey)
		if err != nil {
			respondInternalError(c, err, "seal ai key")
			return
		}
		value = sealed
	}

	ctx := c.Request.Context()
	if err := sc.store.SetSetting(ctx, entities.SettingKeyChatAPIKey, value); err != nil {
		respondInternalError(c, err, "save ai key")
		return
	}
	if req.Model != "" {
		if err := sc.store.SetSetting(ctx, entities.SettingKeyChatModel, req.Model); err != nil {
			respondInternalError(c, err, "save ai model")
			return
		}
	}
	respondSuccess(c, "API key saved")
}

// DeleteAIKey handles DELETE /api/settings/ai-key
func (sc *SettingsController) DeleteAIKey(c *gin.Context) {
	ctx := c.Request.Context()
	if err := sc.store.DeleteSetting(ctx, entities.SettingKeyChatAPIKey); err != nil {
		respondInternalError(c, err, "delete ai key")
		return
	}
	if err := sc.store.DeleteSetting(ctx, entities.SettingKeyChatModel); err != nil {
		respondInternalError(c, err, "delete ai model")
		return
	}
	respondSuccess(c, "API key removed")
}
