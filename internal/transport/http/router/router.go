package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/chatwave/internal/transport/http/handlers"
	"github.com/vedran77/chatwave/internal/transport/http/middleware"
)

type Deps struct {
	Auth      middleware.TokenValidator
	Users     *handlers.UserHandler
	Accounts  *handlers.AuthHandler
	Chats     *handlers.ChatHandler
	Messages  *handlers.MessageHandler
	WebSocket http.HandlerFunc
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// The socket authenticates itself from the header or ?token=.
	if d.WebSocket != nil {
		r.Get("/ws", d.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/user", d.Accounts.Register)
		r.Post("/user/login", d.Accounts.Login)
		r.Post("/user/generate-otp", d.Accounts.RequestOTP)
		r.Post("/user/verify-otp", d.Accounts.VerifyOTP)
		r.Post("/user/reset-password", d.Accounts.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Auth))

			r.Get("/user", d.Users.Search)
			r.Post("/user/block", d.Users.ToggleBlock)
			r.Get("/user/check-block-status", d.Users.BlockStatus)
			r.Put("/user/updateprofile", d.Users.UpdateProfile)

			r.Post("/chat", d.Chats.Access)
			r.Get("/chat", d.Chats.List)
			r.Post("/chat/group", d.Chats.CreateGroup)

			r.Post("/message", d.Messages.Send)
			r.Get("/message/{chatId}", d.Messages.List)
		})
	})

	return r
}
