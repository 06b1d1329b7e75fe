package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/parishhub/digitalschool/internal/api/http"
	auth "github.com/parishhub/digitalschool/internal/auth/middleware"
	"github.com/parishhub/digitalschool/internal/certificate"
	"github.com/parishhub/digitalschool/internal/config"
	"github.com/parishhub/digitalschool/internal/course"
	"github.com/parishhub/digitalschool/internal/db"
	"github.com/parishhub/digitalschool/internal/enroll"
	"github.com/parishhub/digitalschool/internal/exam"
	"github.com/parishhub/digitalschool/internal/grading"
	"github.com/parishhub/digitalschool/internal/leaderboard"
	rbac "github.com/parishhub/digitalschool/internal/rbac"
	storage "github.com/parishhub/digitalschool/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Stores & domain services ---
	courses := course.NewSQLStore(dbh, cfg.DBDriver)
	attempts := exam.NewSQLStore(dbh, cfg.DBDriver, courses, grading.NewChoiceGrader(), cfg.DefaultPassThreshold)
	enrollments := enroll.NewSQLStore(dbh, cfg.DBDriver)

	bs, err := storage.NewFSStore(cfg.BlobBasePath, cfg.PublicURL)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	issuer := certificate.NewIssuer(enrollments, courses, certificate.NewBlobRenderer(bs), api.DisplayName(dbh))
	sink := leaderboard.NewEventLogSink(dbh, cfg.SiteID)
	tracker := enroll.NewTracker(enrollments, courses, attempts, issuer, sink)

	// --- Auth (local JWT for offline/dev) ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// assets routes (protected)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, bs)
		})
	})

	// Protected API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Authoring (teacher/admin)
		pr.With(rbac.Require("course:author")).
			Put("/courses/{courseID}", api.PutCourseHandler(courses))

		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}", api.GetCourseHandler(courses))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(courses))

		// Enrollment lifecycle
		pr.With(rbac.Require("enrollment:create")).
			Post("/enrollments", api.EnrollHandler(tracker))
		pr.With(rbac.RequireAny("enrollment:view-own", "enrollment:view-all")).
			Get("/enrollments/{enrollmentID}", api.GetEnrollmentHandler(tracker))
		pr.With(rbac.RequireAny("enrollment:view-own", "enrollment:view-all")).
			Get("/enrollments/{enrollmentID}/gating", api.GatingHandler(tracker))
		pr.With(rbac.Require("enrollment:withdraw-own")).
			Post("/enrollments/{enrollmentID}/withdraw", api.WithdrawHandler(tracker))
		pr.With(rbac.Require("module:complete")).
			Post("/enrollments/{enrollmentID}/modules/{moduleID}/complete", api.CompleteModuleHandler(tracker))
		pr.With(rbac.Require("certificate:request-own")).
			Post("/enrollments/{enrollmentID}/certificate", api.CertificateHandler(tracker, issuer))

		// Assessment flow
		pr.With(rbac.Require("attempt:create")).
			Post("/exams/{examID}/attempts", api.CreateAttemptHandler(attempts))
		pr.With(rbac.Require("attempt:save")).
			Patch("/attempts/{attemptID}/responses", api.SaveResponseHandler(attempts))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(attempts, tracker))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(attempts))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(attempts))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
