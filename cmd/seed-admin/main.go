// seed-admin creates or updates the admin console user for a business.
// Admin users carry role 'A' and may manage other accounts.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/seed-admin --business-id <id> [--username admin] [--password ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"gorm.io/gorm"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	username := flag.String("username", "admin", "Admin username")
	password := flag.String("password", "", "Required: admin password")
	name := flag.String("name", "Warehouse Admin", "Display name")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}
	if strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "--password is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, strings.TrimSpace(*businessID))
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, *username)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", *username).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			BusinessId: strings.TrimSpace(*businessID),
			Username:   *username,
			Name:       *name,
			Password:   string(hashed),
			IsActive:   utils.NewTrue(),
			Role:       models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %q (id=%d)\n", *username, u.ID)
		return
	}

	updates := map[string]interface{}{
		"password":  string(hashed),
		"is_active": true,
		"role":      models.UserRoleAdmin,
		"name":      *name,
	}
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("updated admin user %q (id=%d)\n", *username, existing.ID)
}
