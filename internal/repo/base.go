package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Limit caps a query at n rows, falling back to def when n is not positive.
func Limit(n, def int) func(*gorm.DB) *gorm.DB {
	if n <= 0 {
		n = def
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}
