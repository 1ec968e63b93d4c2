// mint-token issues an operator JWT for API access. Operators are
// provisioned through migrations or the -create flag; there is no
// self-service signup surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/pkg/auth"
	"github.com/stockline-hq/stockline-backend/pkg/config"
	"github.com/stockline-hq/stockline-backend/pkg/db"
	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
)

func main() {
	email := flag.String("email", "", "operator email to mint a token for")
	name := flag.String("name", "", "operator name (with -create)")
	create := flag.Bool("create", false, "create the operator when missing")
	flag.Parse()

	if err := run(*email, *name, *create); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(email, name string, create bool) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("missing -email")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New(logger.Options{
		ServiceName: "mint-token",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Output:      os.Stderr,
	})

	ctx := context.Background()
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	user, err := findOrCreateOperator(dbClient.DB(), email, name, create)
	if err != nil {
		return err
	}

	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	// Token goes to stdout so it can be captured; everything else is stderr.
	fmt.Println(token)
	return nil
}

func findOrCreateOperator(gdb *gorm.DB, email, name string, create bool) (*models.User, error) {
	var user models.User
	err := gdb.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("look up operator: %w", err)
	case !create:
		return nil, fmt.Errorf("operator %s not found (use -create to provision)", email)
	}

	if name == "" {
		name = email
	}
	user = models.User{
		ID:    uuid.New(),
		Email: email,
		Name:  name,
	}
	if err := gdb.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return &user, nil
}
