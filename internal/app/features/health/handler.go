package health

import (
	"net/http"

	"github.com/dalemusser/tenantgate/internal/app/system/respond"
	"github.com/dalemusser/tenantgate/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// RequiredCollections must exist before the service can route tenants.
var RequiredCollections = []string{"organizations", "licenses", "organization_access", "invitations"}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client   *mongo.Client
	Database string
	Log      *zap.Logger
}

// NewHandler constructs a health Handler. database names the app database
// checked by the readiness endpoint.
func NewHandler(client *mongo.Client, database string, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Database: database,
		Log:      logger,
	}
}

type healthResponse struct {
	Status   string   `json:"status"`
	Database string   `json:"database"`
	Missing  []string `json:"missing_collections,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Serve handles GET /health: 200 {"status":"ok","database":"connected"} when
// MongoDB answers a ping, else 503.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Ping(), h.Log, "health ping")
	defer cancel()

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		respond.JSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "error", Database: "disconnected", Error: err.Error(),
		})
		return
	}
	respond.JSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "connected"})
}

// Ready handles GET /health/ready. Beyond the ping it requires the tenant
// collections, so a node whose schema setup failed is kept out of rotation.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Ping(), h.Log, "health ready")
	defer cancel()

	names, err := h.Client.Database(h.Database).ListCollectionNames(ctx,
		bson.M{"name": bson.M{"$in": RequiredCollections}})
	if err != nil {
		h.Log.Error("health-check: list collections failed", zap.Error(err))
		respond.JSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "error", Database: "disconnected", Error: err.Error(),
		})
		return
	}

	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	var missing []string
	for _, want := range RequiredCollections {
		if !have[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		respond.JSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "not_ready", Database: "connected", Missing: missing,
		})
		return
	}
	respond.JSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "connected"})
}
