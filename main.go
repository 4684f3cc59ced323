package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"storefront-payment-api/config"
	"storefront-payment-api/database"
	"storefront-payment-api/handlers"
	"storefront-payment-api/middleware"
	"storefront-payment-api/queue"
	"storefront-payment-api/services/auth"
	"storefront-payment-api/services/email"
	"storefront-payment-api/services/order"
	"storefront-payment-api/services/payment"
	"storefront-payment-api/services/settings"
	"storefront-payment-api/worker"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds | log.LUTC)
	log.Printf("Server starting with %d CPUs available", runtime.NumCPU())

	cfg := config.Load()

	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg.Database)
		if err == nil {
			break
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
			retries+1, err, retryDelay)
		time.Sleep(retryDelay)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	log.Println("Successfully connected to database")

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	jobQueue, err := queue.NewQueue(cfg.Redis.URL, "payment_jobs")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Successfully connected to Redis")

	settingsCache := settings.NewCache(database.NewSettingsRepository(db), cfg.SettingsTTL)

	mailer := email.NewBreakerSender(email.NewSMTPService(cfg.SMTP), email.BreakerSettings{Name: "smtp"})

	controller := order.NewController(order.Options{
		Gateway:  payment.NewSimulatedGateway(cfg.Gateway.Options()),
		Store:    database.NewOrderRepository(db),
		Notifier: email.NewQueueNotifier(jobQueue),
		Timeout:  cfg.Gateway.Timeout,
	})

	paymentWorker := worker.NewWorker(jobQueue, email.NewDirectNotifier(mailer), controller)
	paymentWorker.Start(cfg.Redis.WorkerConcurrency)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	limiter := middleware.NewRateLimiter(jobQueue.Client())

	cart := handlers.NewCart(handlers.NewSessionStore(handlers.SessionConfig{
		Secret: cfg.Session.Secret,
		Domain: cfg.Session.Domain,
		MaxAge: cfg.Session.MaxAge,
		Secure: !cfg.Session.Insecure,
	}))

	paymentHandler, err := handlers.NewPaymentHandler(controller, settingsCache, cart, db)
	if err != nil {
		log.Fatalf("Failed to initialize payment handler: %v", err)
	}
	cartHandler := handlers.NewCartHandler(cart, settingsCache)
	catalogHandler := handlers.NewCatalogHandler(settingsCache)
	reconciliationHandler := handlers.NewReconciliationHandler(jobQueue, cfg.Reconciliation.Token)
	internalHandler := handlers.NewInternalHandler(jwtService, settingsCache, jobQueue, cfg.InternalSecret)
	healthHandler := handlers.NewHealthHandler(
		func(ctx context.Context) error { return db.GetDB().PingContext(ctx) },
		func(ctx context.Context) error { return jobQueue.Client().Ping(ctx).Err() },
	)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", healthHandler.Health).Methods("GET")
	api.HandleFunc("/payment-methods", catalogHandler.GetPaymentMethods).Methods("GET", "OPTIONS")
	api.HandleFunc("/pricing", catalogHandler.GetPricing).Methods("GET", "OPTIONS")
	api.HandleFunc("/cart", cartHandler.AddToCart).Methods("POST", "OPTIONS")
	api.HandleFunc("/cart", cartHandler.UpdateCart).Methods("PUT", "OPTIONS")
	api.HandleFunc("/cart", cartHandler.GetCart).Methods("GET", "OPTIONS")
	api.HandleFunc("/cart/remove", cartHandler.RemoveFromCart).Methods("POST", "OPTIONS")
	api.HandleFunc("/reconciliation", reconciliationHandler.HandleReconciliation).Methods("POST")

	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.AuthMiddleware(jwtService))
	authed.HandleFunc("/me", handlers.GetCustomerInfo).Methods("GET", "OPTIONS")
	authed.HandleFunc("/orders/{id}", paymentHandler.GetOrder).Methods("GET", "OPTIONS")
	authed.HandleFunc("/orders/{id}/abandon", paymentHandler.AbandonOrder).Methods("POST", "OPTIONS")

	attempts := authed.NewRoute().Subrouter()
	attempts.Use(limiter.Limit("payment", middleware.PaymentAttemptLimit))
	attempts.HandleFunc("/checkout", paymentHandler.Checkout).Methods("POST", "OPTIONS")
	attempts.HandleFunc("/orders/{id}/retry", paymentHandler.RetryOrder).Methods("POST", "OPTIONS")

	internal := router.PathPrefix("/internal").Subrouter()
	internal.Use(limiter.Limit("internal", middleware.DefaultLimit))
	internalHandler.Register(internal)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Gateway.Timeout + 20*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Stopping payment worker...")
	paymentWorker.Stop()

	log.Println("Closing database connections...")
	db.Close()

	log.Println("Closing Redis connections...")
	jobQueue.Close()

	log.Println("Server exited properly")
}
