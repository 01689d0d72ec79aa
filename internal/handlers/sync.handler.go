package handlers

import (
	"context"

	"github.com/fasthttp/router"

	"github.com/orderstack/pos-ledger/internal/model"
	xhttp "github.com/orderstack/pos-ledger/pkg/http"
)

type SyncEngine interface {
	Status(ctx context.Context) (*model.SyncStatus, error)
	TriggerNow()
}

type SyncHandler struct {
	engine SyncEngine
}

func RegisterSyncRoutes(e *router.Group, h *SyncHandler) {
	e.GET("/sync/status", h.GetStatus)
	e.POST("/sync/run", h.TriggerRun)
}

func NewSyncHandler(engine SyncEngine) *SyncHandler {
	return &SyncHandler{
		engine: engine,
	}
}

func (h *SyncHandler) GetStatus(ctx *xhttp.RequestCtx) {
	status, err := h.engine.Status(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, status)
}

// TriggerRun requests an immediate sync pass. The run happens in the
// background; poll /sync/status for the outcome.
func (h *SyncHandler) TriggerRun(ctx *xhttp.RequestCtx) {
	h.engine.TriggerNow()
	writeJSON(ctx, 202, map[string]string{"status": "triggered"})
}
