package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/observability"

	"gorm.io/gorm"
)

type BootstrapReport struct {
	Email    string `json:"email"`
	Found    bool   `json:"found"`
	Promoted bool   `json:"promoted"`
	Noop     bool   `json:"noop"`
}

func Seed(db *gorm.DB, bootstrapAdminEmail string) error {
	_, err := SeedSync(db, bootstrapAdminEmail)
	return err
}

// SeedSync promotes the bootstrap admin, if that identity already exists.
// Identities activated later with the same address start as admin anyway.
func SeedSync(db *gorm.DB, bootstrapAdminEmail string) (*BootstrapReport, error) {
	start := time.Now()
	ctx := context.Background()
	defer func() {
		observability.RecordDatabaseStartupDuration(ctx, "seed", time.Since(start))
	}()

	report := &BootstrapReport{Email: strings.TrimSpace(strings.ToLower(bootstrapAdminEmail))}
	if report.Email == "" {
		report.Noop = true
		observability.RecordDatabaseStartupEvent(ctx, "seed", "success")
		return report, nil
	}

	var u domain.User
	if err := db.Where("email = ?", report.Email).First(&u).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordDatabaseStartupEvent(ctx, "seed", "error")
			return nil, err
		}
		report.Noop = true
		observability.RecordDatabaseStartupEvent(ctx, "seed", "success")
		return report, nil
	}
	report.Found = true
	if u.Role != domain.RoleAdmin {
		if err := db.Model(&u).Update("role", domain.RoleAdmin).Error; err != nil {
			observability.RecordDatabaseStartupEvent(ctx, "seed", "error")
			return nil, fmt.Errorf("promote bootstrap admin: %w", err)
		}
		report.Promoted = true
	}
	report.Noop = !report.Promoted
	observability.RecordDatabaseStartupEvent(ctx, "seed", "success")
	return report, nil
}

// VerifyEmail marks an identity as verified. Development tooling only.
func VerifyEmail(db *gorm.DB, email string) error {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" {
		return fmt.Errorf("email is required")
	}
	tx := db.Model(&domain.User{}).Where("email = ?", normalized).Update("is_verified", true)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
