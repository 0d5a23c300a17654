package data

import (
	"log"

	"github.com/reunite-app/reunite/src/types"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MustMySQL connects to MySQL or exits. TranslateError is on so the
// (post_id, claimant_id) unique index violation surfaces as
// gorm.ErrDuplicatedKey instead of a raw driver error.
func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	return db
}

// Migrate creates or updates the claim engine tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Setting{},
		&types.Post{},
		&types.SecurityQuestion{},
		&types.Claim{},
		&types.ClaimAnswer{},
		&types.AuditEntry{},
	)
}
