package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @Summary      List Providers
// @Description  List registered payment gateways
// @Tags         providers
// @Produce      json
// @Success      200  {object}  []string
// @Router       /providers [get]
func (s *Server) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.registry.Providers()})
}

type upsertProviderConfigRequest struct {
	Config map[string]any `json:"config"`
}

// @Summary      Upsert Provider Config
// @Description  Store gateway credentials encrypted and drop cached adapters
// @Tags         providers
// @Accept       json
// @Produce      json
// @Param        provider  path  string  true  "Provider"
// @Param        request body upsertProviderConfigRequest true "Provider Config"
// @Success      200  {object}  map[string]string
// @Router       /providers/{provider}/config [put]
func (s *Server) UpsertProviderConfig(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	if !s.registry.ProviderExists(provider) {
		AbortWithError(c, &APIError{
			Status:  http.StatusNotFound,
			Code:    "provider_not_found",
			Message: "unknown provider",
		})
		return
	}

	var req upsertProviderConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Config) == 0 {
		AbortWithError(c, newValidationError("config", "required", "config is required"))
		return
	}

	if err := s.configStore.Save(c.Request.Context(), provider, req.Config); err != nil {
		AbortWithError(c, err)
		return
	}
	s.registry.Invalidate(provider)

	s.log.Info("provider config updated", zap.String("provider", provider))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
