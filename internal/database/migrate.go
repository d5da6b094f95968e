package database

import (
	"context"
	"time"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/observability"

	"gorm.io/gorm"
)

// Models lists every table owned by the identity store.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.UserCourse{},
	}
}

func Migrate(db *gorm.DB) error {
	start := time.Now()
	ctx := context.Background()
	defer func() {
		observability.RecordDatabaseStartupDuration(ctx, "migrate", time.Since(start))
	}()
	if err := db.AutoMigrate(Models()...); err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(ctx, "migrate", "success")
	return nil
}

// PendingTables returns the tables that do not exist yet.
func PendingTables(db *gorm.DB) []string {
	var pending []string
	migrator := db.Migrator()
	for _, m := range Models() {
		if !migrator.HasTable(m) {
			stmt := &gorm.Statement{DB: db}
			if err := stmt.Parse(m); err == nil {
				pending = append(pending, stmt.Schema.Table)
			}
		}
	}
	return pending
}
