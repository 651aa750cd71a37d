package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/andriyansah/school-api/api/swagger"
	"github.com/andriyansah/school-api/internal/handler"
	"github.com/andriyansah/school-api/internal/middleware"
	"github.com/andriyansah/school-api/internal/models"
	"github.com/andriyansah/school-api/internal/repository"
	"github.com/andriyansah/school-api/internal/service"
	"github.com/andriyansah/school-api/pkg/cache"
	"github.com/andriyansah/school-api/pkg/config"
	"github.com/andriyansah/school-api/pkg/database"
	"github.com/andriyansah/school-api/pkg/export"
	"github.com/andriyansah/school-api/pkg/logger"
	corsmiddleware "github.com/andriyansah/school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/andriyansah/school-api/pkg/middleware/requestid"
)

// @title School Management API
// @version 1.0.0
// @description Role-scoped management of schools, classrooms and students
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, rate limiting disabled", "error", err)
		redisClient = nil
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, schoolRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classroomRepo, schoolRepo, metricsSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	schoolHandler := handler.NewSchoolHandler(schoolSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc, export.NewPDFExporter())
	studentHandler := handler.NewStudentHandler(studentSvc, metricsSvc, export.NewCSVExporter())
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Secure())
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.RateLimit(redisClient, cfg.RateLimit, logr))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	superadminOnly := middleware.RequireRoles(models.RoleSuperAdmin)

	users := protected.Group("/users")
	users.GET("", superadminOnly, userHandler.List)
	users.GET("/:id", userHandler.Get)

	schools := protected.Group("/schools")
	schools.GET("", schoolHandler.List)
	schools.GET("/:id", schoolHandler.Get)
	schools.POST("", superadminOnly, schoolHandler.Create)
	schools.PUT("/:id", superadminOnly, schoolHandler.Update)
	schools.DELETE("/:id", superadminOnly, schoolHandler.Delete)

	classrooms := protected.Group("/classrooms")
	classrooms.GET("", classroomHandler.List)
	classrooms.GET("/:id", classroomHandler.Get)
	classrooms.GET("/:id/roster", classroomHandler.Roster)
	classrooms.POST("", classroomHandler.Create)
	classrooms.PUT("/:id", classroomHandler.Update)
	classrooms.DELETE("/:id", classroomHandler.Delete)

	students := protected.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/export", studentHandler.Export)
	students.GET("/:id", studentHandler.Get)
	students.POST("", studentHandler.Enroll)
	students.POST("/:id/transfer", studentHandler.Transfer)
	students.PUT("/:id", studentHandler.Update)
	students.DELETE("/:id", studentHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
