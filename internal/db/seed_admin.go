package db

import (
	"context"

	"github.com/geocoder89/chathub/internal/config"
)

type AdminSeeder interface {
	EnsureAdmin(ctx context.Context, email, password, firstName, lastName string) error
}

// EnsureAdminUser seeds the bootstrap admin from config. It is a no-op when
// ADMIN_EMAIL or ADMIN_PASSWORD is unset.
func EnsureAdminUser(ctx context.Context, seeder AdminSeeder, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	return seeder.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminFirstName, cfg.AdminLastName)
}
