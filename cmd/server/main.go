package main // Entry point package

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/carelink/portal-auth/internal/config"
	"github.com/carelink/portal-auth/internal/database"
	"github.com/carelink/portal-auth/internal/handler"
	"github.com/carelink/portal-auth/internal/mailer"
	"github.com/carelink/portal-auth/internal/middleware"
	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/queue"
	"github.com/carelink/portal-auth/internal/repository"
	"github.com/carelink/portal-auth/internal/router"
	"github.com/carelink/portal-auth/internal/service"
)

func main() {
	// Load a local .env when present; real deployments set the
	// environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}

	// The ephemeral store is load-bearing for every flow; refusing to
	// start beats serving requests that cannot issue or revoke tokens.
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	tokens := repository.NewTokenRepo(rdb)
	patients := repository.NewPatientRepo(db)
	doctors := repository.NewDoctorRepo(db)
	admins := repository.NewAdminRepo(db)

	mail := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
	events := queue.NewAMQPPublisher()

	// Background audit consumer; reconnects on its own.
	go func() {
		if err := queue.StartAuthEventConsumer(); err != nil {
			log.Printf("auth-consumer stopped: %v", err)
		}
	}()

	accessTTL := time.Duration(cfg.AccessTTLMin) * time.Minute
	doctorAccessTTL := time.Duration(cfg.DoctorAccessTTLMin) * time.Minute
	refreshTTL := time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour
	otpTTL := time.Duration(cfg.OTPTTLSec) * time.Second
	dataTTL := time.Duration(cfg.SignupDataTTLMin) * time.Minute
	resetTTL := time.Duration(cfg.ResetTTLMin) * time.Minute
	doctorResetTTL := time.Duration(cfg.DoctorResetTTLMin) * time.Minute

	secure := cfg.Env == "prod"

	// Patient services and handler.
	patientAuth := service.NewAuthService(patients, tokens, cfg.Secrets, accessTTL, refreshTTL, cfg.BcryptCost, events)
	patientSignup := service.NewSignupService(patients, tokens, patientAuth, mail, otpTTL, dataTTL)
	patientReset := service.NewPasswordResetService(patients, tokens, mail, resetTTL, cfg.BcryptCost, events)
	patientHandler := handler.NewAuthHandler(patientAuth, patientSignup, patientReset, cfg.ResetURLBase, secure)

	// Doctor services and handler: separate secrets, shorter TTLs.
	doctorAuth := service.NewAuthService(doctors, tokens, cfg.Secrets, doctorAccessTTL, refreshTTL, cfg.BcryptCost, events)
	doctorSignup := service.NewSignupService(doctors, tokens, doctorAuth, mail, otpTTL, dataTTL)
	doctorReset := service.NewPasswordResetService(doctors, tokens, mail, doctorResetTTL, cfg.BcryptCost, events)
	doctorHandler := handler.NewAuthHandler(doctorAuth, doctorSignup, doctorReset, cfg.ResetURLBase, secure)

	// Admin services and handlers.
	adminAuth := service.NewAuthService(admins, tokens, cfg.Secrets, accessTTL, refreshTTL, cfg.BcryptCost, events)
	adminHandler := handler.NewAuthHandler(adminAuth, nil, nil, cfg.ResetURLBase, secure)
	adminSvc := service.NewAdminService(patients, doctors, tokens, events)
	adminAccounts := handler.NewAdminHandler(adminSvc)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterRole(e, "/v1/patient", model.RolePatient, router.RoleDeps{
		Handler: patientHandler, Secrets: cfg.Secrets, Accounts: patients, Tokens: tokens, Limiter: limiter,
	})
	router.RegisterRole(e, "/v1/doctor", model.RoleDoctor, router.RoleDeps{
		Handler: doctorHandler, Secrets: cfg.Secrets, Accounts: doctors, Tokens: tokens, Limiter: limiter,
	})
	router.RegisterAdmin(e, router.RoleDeps{
		Handler: adminHandler, Secrets: cfg.Secrets, Accounts: admins, Tokens: tokens, Limiter: limiter,
	}, adminAccounts)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
