package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"consultbooking/internal/api"
	"consultbooking/internal/auth"
	"consultbooking/internal/fsm"
	"consultbooking/internal/registry"
	"consultbooking/internal/repository"
	"consultbooking/internal/service"
	"consultbooking/internal/tasks"
)

const (
	backendCallTimeout   = 15 * time.Second
	availabilityCacheTTL = 30 * time.Second
	sweepTimeout         = 4 * time.Minute
)

func main() {
	godotenv.Load()

	reg, err := registry.Load(envOr("REGISTRY_FILE", "registry.json"))
	if err != nil {
		log.Fatalf("Failed to load worker registry: %v", err)
	}

	businessTZ := envOr("BUSINESS_TIMEZONE", "America/Chicago")
	loc, err := time.LoadLocation(businessTZ)
	if err != nil {
		log.Fatalf("Invalid BUSINESS_TIMEZONE %q: %v", businessTZ, err)
	}

	baseURL := os.Getenv("BACKEND_BASE_URL")
	tenantID := os.Getenv("BACKEND_TENANT_ID")
	if baseURL == "" || tenantID == "" {
		log.Fatal("BACKEND_BASE_URL and BACKEND_TENANT_ID must be set")
	}
	tokens := fsm.NewTokenProvider(
		os.Getenv("BACKEND_TOKEN_URL"),
		os.Getenv("BACKEND_CLIENT_ID"),
		os.Getenv("BACKEND_CLIENT_SECRET"),
		backendCallTimeout,
	)
	backend := fsm.NewClient(baseURL, tenantID, tokens, backendCallTimeout)

	// The reporting mirror is optional; without a DATABASE_URL the service
	// simply skips mirror and sweep-metric writes.
	var reports *repository.ReportRepository
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			log.Fatalf("Failed to open DB: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		reports = repository.NewReportRepository(db)
	} else {
		log.Println("DATABASE_URL not set, reporting mirror disabled")
	}

	queue := tasks.NewQueue(2, 64)
	defer queue.Close()

	var sender *service.SenderService
	if os.Getenv("SENDGRID_API_KEY") != "" {
		sender, err = service.NewSenderService(
			os.Getenv("SENDGRID_API_KEY"),
			os.Getenv("SENDGRID_FROM_EMAIL"),
			os.Getenv("SENDGRID_FROM_NAME"),
		)
		if err != nil {
			log.Fatalf("Failed to configure SendGrid: %v", err)
		}
	} else {
		log.Println("SENDGRID_API_KEY not set, confirmation emails disabled")
	}

	sms, err := service.NewSMSService(
		os.Getenv("TWILIO_ACCOUNT_SID"),
		os.Getenv("TWILIO_AUTH_TOKEN"),
		os.Getenv("TWILIO_FROM_NUMBER"),
	)
	if err != nil {
		log.Fatalf("Failed to configure Twilio: %v", err)
	}

	availabilitySvc := service.NewAvailabilityService(backend, reg, loc, availabilityCacheTTL)
	bookingSvc := service.NewBookingService(backend, reg, reports, sender, queue, loc)
	notificationSvc := service.NewNotificationService(backend, sms, reg, reports, service.NotificationConfig{
		ServiceTypeID:     os.Getenv("NOTIFY_SERVICE_TYPE_ID"),
		Window:            time.Duration(envInt("NOTIFY_WINDOW_MINUTES", 5)) * time.Minute,
		MarkerText:        os.Getenv("NOTIFY_MARKER_TEXT"),
		CustomerLinkField: envOr("NOTIFY_CUSTOMER_LINK_FIELD", "CustomerJoinLink"),
		WorkerLinkField:   envOr("NOTIFY_WORKER_LINK_FIELD", "TechJoinLink"),
		DisplayName:       envOr("NOTIFY_DISPLAY_NAME", "Virtual Consultations"),
	}, loc)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(envOr("NOTIFY_SCHEDULE", "@every 1m"), func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := notificationSvc.RunSweep(ctx); err != nil {
			log.Printf("Scheduled notification sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule notification sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	bookingHandler := api.NewBookingHandler(availabilitySvc, bookingSvc)
	adminHandler := api.NewAdminHandler(notificationSvc)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/availability", bookingHandler.CheckAvailability).Methods("POST")
	r.HandleFunc("/api/bookings", bookingHandler.CreateBooking).Methods("POST")

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AdminAuthMiddleware(os.Getenv("ADMIN_TOKEN")))
	admin.HandleFunc("/notifications/run", adminHandler.RunNotificationSweep).Methods("POST")

	handler := handlers.LoggingHandler(os.Stdout, handlers.CORS(
		handlers.AllowedOrigins([]string{envOr("CORS_ORIGIN", "*")}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r))

	port := envOr("PORT", "8080")
	log.Printf("Server running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s value %q: %v", key, v, err)
	}
	return n
}
