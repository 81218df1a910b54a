package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/middleware"
	"github.com/roomchat/internal/storage"
	"github.com/roomchat/internal/ws"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Engine      *chat.Engine
	Sessions    storage.SessionStore
	SessionTTL  time.Duration
	Hub         *ws.Hub
	CORSOrigins string
	RateRPS     float64
	RateBurst   int
}

// NewRouter wires every route of the chat API.
func NewRouter(d Deps) http.Handler {
	roomH := NewRoomHandler(d.Engine, d.Sessions, d.SessionTTL)
	msgH := NewMessageHandler(d.Engine)
	dmH := NewDirectHandler(d.Engine)
	userH := NewUserHandler(d.Engine)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(d.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(d.RateRPS, d.RateBurst))
		r.Get("/api/rooms", roomH.ListPublic)
		r.Post("/api/rooms", roomH.Create)
		r.Post("/api/rooms/{code}/join", roomH.Join)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(d.Sessions))
		r.Use(middleware.RateLimit(d.RateRPS, d.RateBurst))
		r.Delete("/api/session", roomH.Leave)
		r.Delete("/api/rooms/{code}", roomH.Delete)
		r.Get("/api/rooms/{code}/messages", roomH.History)
		r.Post("/api/rooms/{code}/messages", roomH.Send)
		r.Get("/api/rooms/{code}/presence", roomH.Presence)
		r.Put("/api/messages/{id}", msgH.Edit)
		r.Delete("/api/messages/{id}", msgH.Delete)
		r.Post("/api/messages/{id}/reactions", msgH.React)
		r.Post("/api/messages/{id}/read", msgH.MarkRead)
		r.Get("/api/me", userH.Me)
		r.Put("/api/me", userH.UpdateProfile)
		r.Get("/api/me/settings", userH.GetSettings)
		r.Put("/api/me/settings", userH.UpdateSettings)
		r.Get("/api/dm", dmH.Conversations)
		r.Get("/api/dm/{userId}", dmH.Open)
		r.Post("/api/dm/{userId}", dmH.Send)
		r.Put("/api/dm/messages/{id}", dmH.Edit)
		r.Delete("/api/dm/messages/{id}", dmH.Delete)
		r.Post("/api/dm/messages/{id}/read", dmH.MarkRead)
		if d.Hub != nil {
			r.Get("/ws", NewWSHandler(d.Hub, d.CORSOrigins).ServeWS)
		}
	})
	return r
}
