package store

import (
	"context"
	"fmt"

	"github.com/mohitdev/blogbackend/config"
	"github.com/mohitdev/blogbackend/models"
)

// SeedAdminUser creates the admin account from configuration when it does not
// exist yet. A no-op when admin credentials are not configured.
func SeedAdminUser(ctx context.Context, users *UserStore, cfg config.AuthConfig) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, err := users.Create(ctx, NewUser{
		FirstName: "Admin",
		LastName:  "User",
		Email:     cfg.AdminEmail,
		Password:  cfg.AdminPassword,
		Role:      models.RoleAdmin,
	})
	if err == ErrDuplicateEmail {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}
