package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for local SQLite runs and
// repository tests. Enum columns become TEXT guarded by CHECK constraints.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL COLLATE NOCASE,
  password_hash TEXT NOT NULL,
  display_name TEXT NOT NULL,
  subscription_tier TEXT NOT NULL DEFAULT 'free' CHECK (subscription_tier IN ('free','basic','pro','enterprise')),
  subscription_ends_at DATETIME,
  stripe_customer_id TEXT,
  stripe_subscription_id TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email COLLATE NOCASE)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_stripe_customer_id ON users (stripe_customer_id) WHERE stripe_customer_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS contracts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  file_name TEXT NOT NULL,
  file_type TEXT NOT NULL CHECK (file_type IN ('pdf','docx')),
  file_size_bytes INTEGER NOT NULL CHECK (file_size_bytes >= 0),
  storage_key TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','processing','completed','failed')),
  error_message TEXT,
  uploaded_at DATETIME NOT NULL,
  analyzed_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_user_uploaded_at ON contracts (user_id, uploaded_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS contract_analyses (
  id TEXT PRIMARY KEY,
  contract_id TEXT NOT NULL UNIQUE REFERENCES contracts(id) ON DELETE CASCADE,
  overall_risk TEXT NOT NULL CHECK (overall_risk IN ('low','medium','high')),
  confidence INTEGER NOT NULL CHECK (confidence BETWEEN 0 AND 100),
  key_information TEXT NOT NULL,
  risk_flags TEXT NOT NULL,
  model TEXT NOT NULL,
  created_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS whispers (
  id TEXT PRIMARY KEY,
  text TEXT NOT NULL CHECK (length(text) BETWEEN 1 AND 500),
  theme TEXT NOT NULL,
  author_name TEXT NOT NULL,
  user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
  likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
  view_count INTEGER NOT NULL DEFAULT 0,
  is_approved INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS whisper_likes (
  whisper_id TEXT NOT NULL REFERENCES whispers(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at DATETIME,
  PRIMARY KEY (whisper_id, user_id)
)`,
	`CREATE TABLE IF NOT EXISTS whisper_reports (
  id TEXT PRIMARY KEY,
  whisper_id TEXT NOT NULL REFERENCES whispers(id) ON DELETE CASCADE,
  reporter_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  reason TEXT NOT NULL CHECK (reason IN ('inappropriate','spam','harassment','misinformation','other')),
  details TEXT,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','investigating','resolved_removed','resolved_kept','dismissed')),
  created_at DATETIME,
  updated_at DATETIME
)`,
}

// EnsureSQLiteSchema creates the application tables on a SQLite connection.
func EnsureSQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	if conn.Dialector.Name() != "sqlite" {
		return fmt.Errorf("sqlite schema requested on %s connection", conn.Dialector.Name())
	}
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
