package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/epubreader/internal/database"
)

// probeTimeout bounds each dependency check so a wedged database cannot
// hang the health endpoint.
const probeTimeout = 2 * time.Second

// Probe checks a single dependency. A nil error means it is usable.
type Probe func(ctx context.Context) error

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Schema  int               `json:"schema,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// HealthController reports on the library database and any extra probes,
// such as the task queue.
type HealthController struct {
	db      *database.Store
	probes  map[string]Probe
	version string
}

func NewHealthController(db *database.Store, version string) *HealthController {
	return &HealthController{
		db:      db,
		probes:  make(map[string]Probe),
		version: version,
	}
}

// AddProbe registers a named check. Registering a name twice replaces it.
func (h *HealthController) AddProbe(name string, probe Probe) {
	h.probes[name] = probe
}

func (h *HealthController) Status(c *gin.Context) {
	resp := HealthResponse{
		Status:  "healthy",
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  make(map[string]string, len(h.probes)+1),
	}

	run := func(name string, probe Probe) bool {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()
		if err := probe(ctx); err != nil {
			resp.Checks[name] = "error: " + err.Error()
			resp.Status = "unhealthy"
			return false
		}
		resp.Checks[name] = "ok"
		return true
	}

	if h.db == nil {
		resp.Checks["database"] = "not configured"
	} else if run("database", h.db.Ping) {
		resp.Schema = h.db.Version()
	}
	for name, probe := range h.probes {
		run(name, probe)
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.IndentedJSON(code, resp)
}
