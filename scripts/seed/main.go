package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/andriyansah/school-api/internal/models"
	"github.com/andriyansah/school-api/internal/repository"
	"github.com/andriyansah/school-api/pkg/config"
	"github.com/andriyansah/school-api/pkg/database"
)

// Seeds the initial superadmin account so a fresh deployment has a way
// to log in. Safe to run repeatedly: a no-op when a superadmin exists.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := repository.NewUserRepository(db)

	exists, err := users.ExistsByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		log.Fatalf("failed to check existing superadmin: %v", err)
	}
	if exists {
		log.Println("superadmin already present, nothing to do")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     cfg.Seed.Username,
		Email:        cfg.Seed.Email,
		PasswordHash: string(hash),
		Role:         models.RoleSuperAdmin,
		Active:       true,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("failed to create superadmin: %v", err)
	}

	log.Printf("superadmin created: %s", user.Email)
}
