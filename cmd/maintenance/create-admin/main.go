package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/homeserve/marketplace-backend/internal/config"
	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// create-admin provisions an admin account. Admins cannot self-register
// through the API.
func main() {
	var name, email, password string
	flag.StringVar(&name, "name", "Administrator", "display name")
	flag.StringVar(&email, "email", "", "admin email (required)")
	flag.StringVar(&password, "password", "", "admin password, at least 8 characters (required)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 8 {
		flag.Usage()
		log.Fatal("-email and a -password of at least 8 characters are required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Security.BcryptCost)
	if err != nil {
		logger.Fatalf("Failed to hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := database.NewUserRepository(db).CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			logger.Fatalf("An account with email %s already exists", email)
		}
		logger.Fatalf("Failed to create admin: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("Admin account created")
}
