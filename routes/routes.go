package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ESD-II/tracker-website/handlers"
)

func SetupRoutes(
	router *chi.Mux,
	pointHandler *handlers.PointHandler,
	webSocketHandler *handlers.WebSocketHandler,
	metricsHandler http.Handler,
) {
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // React frontend runs on a different origin
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", metricsHandler)

	router.Route("/points", func(r chi.Router) {
		r.Get("/", pointHandler.ListPoints)
		r.Get("/{pointID}/replay", pointHandler.ReplayPoint)
	})

	router.Get("/ws/live", webSocketHandler.ServeWs)
}
