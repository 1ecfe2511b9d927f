package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "github.com/virtualhq/agenthq/backend/internal/handler/auth"
	conversationhandler "github.com/virtualhq/agenthq/backend/internal/handler/conversation"
	personahandler "github.com/virtualhq/agenthq/backend/internal/handler/persona"
	wshandler "github.com/virtualhq/agenthq/backend/internal/handler/ws"
	"github.com/virtualhq/agenthq/backend/internal/middleware"
	personamodel "github.com/virtualhq/agenthq/backend/internal/model/persona"
	"github.com/virtualhq/agenthq/backend/internal/realtime"
	conversationservice "github.com/virtualhq/agenthq/backend/internal/service/conversation"
	identityservice "github.com/virtualhq/agenthq/backend/internal/service/identity"
	"github.com/virtualhq/agenthq/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the core services. Every protected route
// resolves identity exclusively through the auth middleware's VerifyToken.
func NewRouter(ids *identityservice.Service, engine *conversationservice.Service, personas personamodel.Store, hub *realtime.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	authHandler := authhandler.New(ids)
	personaHandler := personahandler.New(personas)
	conversationHandler := conversationhandler.New(engine)
	wsHandler := wshandler.New(hub)

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterPublicRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.Auth(ids))

			authHandler.RegisterProtectedRoutes(protected)
			personaHandler.RegisterRoutes(protected)
			conversationHandler.RegisterRoutes(protected)
			wsHandler.RegisterRoutes(protected)
		})
	})

	return r
}
