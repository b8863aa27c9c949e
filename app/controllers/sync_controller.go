package controllers

import (
	"context"
	"net/http"

	"github.com/shashiranjanraj/offersync/app/services"
	"github.com/shashiranjanraj/offersync/pkg/response"
)

type SyncController struct {
	engine *services.SyncEngine
}

func NewSyncController(engine *services.SyncEngine) *SyncController {
	return &SyncController{engine: engine}
}

// Run handles POST /api/sync: one cycle, answered with its report. The
// cycle runs to completion even if the client goes away.
func (c *SyncController) Run(w http.ResponseWriter, r *http.Request) {
	report, err := c.engine.RunCycle(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, report)
}
