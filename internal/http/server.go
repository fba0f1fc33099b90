package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/topup", func(r chi.Router) {
		r.Post("/orders", handler.CreateOrder)
		r.Get("/orders/{orderId}", handler.GetOrder)
		r.Post("/orders/{orderId}/confirm", handler.Confirm)
	})

	r.Get("/users/{userId}/balance", handler.GetBalance)

	r.Post("/webhook/gateway", handler.GatewayCallback)

	return &Server{Router: r}
}
