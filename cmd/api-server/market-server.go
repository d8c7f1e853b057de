package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"medmarket/db"
	"medmarket/db/migrations"
	"medmarket/internal/auth"
	"medmarket/internal/handlers"
	"medmarket/internal/logger"
	"medmarket/internal/notify"
)

func main() {
	_ = godotenv.Load()

	zaplog, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("Cannot build logger: %v", err)
	}
	defer zaplog.Sync()

	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		zaplog.Fatal("POSTGRES_CONN env variable is not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		zaplog.Fatal("JWT_SECRET env variable is not set")
	}

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		zaplog.Fatal("Cannot connect to DB", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB, "./migrations", zaplog); err != nil {
		zaplog.Fatal("Cannot run migrations", zap.Error(err))
	}

	store := db.NewStorage(dbConn)
	notifier := notify.New(store, os.Getenv("NOTIFY_WEBHOOK"), zaplog)
	h := handlers.NewHandler(store, notifier, zaplog)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(zaplog))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))
			// requests
			r.Post("/requests/new", h.CreateRequestHandler)
			r.Get("/requests", h.GetOpenRequestsHandler)
			r.Get("/requests/my", h.GetMyRequestsHandler)
			r.Put("/requests/{requestId}/cancel", h.CancelRequestHandler)
			r.Get("/requests/{requestId}/bids", h.GetBidsForRequestHandler)
			// bids
			r.Post("/bids/new", h.CreateBidHandler)
			r.Get("/bids/my", h.GetMyBidsHandler)
			r.Put("/bids/{bidId}/accept", h.AcceptBidHandler)
			// transactions
			r.Get("/transactions/my", h.GetMyTransactionsHandler)
			r.Get("/transactions/{transactionId}/counterparty", h.GetCounterpartyHandler)
			r.Put("/transactions/{transactionId}/status", h.UpdateTransactionStatusHandler)
			r.Put("/transactions/{transactionId}/pay", h.MarkTransactionPaidHandler)
			// notifications
			r.Get("/notifications", h.GetNotificationsHandler)
			r.Put("/notifications/{notificationId}/read", h.MarkNotificationReadHandler)
		})
	})

	serverAddr := os.Getenv("SERVER_ADDRESS")
	if serverAddr == "" {
		serverAddr = "0.0.0.0:8080"
	}

	zaplog.Info("starting server", zap.String("addr", serverAddr))
	log.Fatal(http.ListenAndServe(serverAddr, r))
}
