package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/half-paul/donations2.0-sub001/internal/processor"
)

// ProcessorHandler exposes which payment processors the deployment has
// credentials for. Unconfigured processors are hidden from donors entirely.
type ProcessorHandler struct {
	registry *processor.Registry
	logger   *zap.Logger
}

func NewProcessorHandler(registry *processor.Registry, logger *zap.Logger) *ProcessorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessorHandler{registry: registry, logger: logger}
}

// List is GET /api/processors.
func (h *ProcessorHandler) List(c echo.Context) error {
	return successResponse(c, map[string]interface{}{
		"processors": h.registry.Configured(),
	})
}
