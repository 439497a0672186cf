package store

import (
	"context"
	"fmt"
	"strings"
)

const schemaVersion = 2

var tables = []string{`
CREATE TABLE IF NOT EXISTS lead_sources (
  id {{pk}},
  name VARCHAR(255) NOT NULL,
  type VARCHAR(32) NOT NULL,
  base_url VARCHAR(512) NOT NULL,
  countries TEXT NOT NULL,
  active INTEGER NOT NULL,
  scrape_config TEXT NOT NULL,
  last_scraped_at VARCHAR(40) NULL,
  leads_found INTEGER NOT NULL DEFAULT 0
)`, `
CREATE TABLE IF NOT EXISTS leads (
  id {{pk}},
  name VARCHAR(255) NOT NULL,
  company_name VARCHAR(255) NOT NULL,
  company_name_local VARCHAR(255) NOT NULL,
  email VARCHAR(255) NULL,
  phone VARCHAR(64) NOT NULL,
  website VARCHAR(512) NULL,
  industry VARCHAR(255) NOT NULL,
  company_size VARCHAR(16) NOT NULL,
  description TEXT NOT NULL,
  address VARCHAR(512) NOT NULL,
  city VARCHAR(128) NOT NULL,
  country VARCHAR(8) NOT NULL,
  linkedin_url VARCHAR(512) NOT NULL,
  facebook_url VARCHAR(512) NOT NULL,
  instagram_url VARCHAR(512) NOT NULL,
  service VARCHAR(64) NOT NULL,
  relevance_score INTEGER NOT NULL DEFAULT 0,
  rating REAL NOT NULL DEFAULT 0,
  tags TEXT NOT NULL,
  source_id BIGINT NULL,
  source_url VARCHAR(512) NOT NULL,
  scraped INTEGER NOT NULL DEFAULT 0,
  status VARCHAR(16) NOT NULL,
  deal_value REAL NOT NULL DEFAULT 0,
  last_contacted_at VARCHAR(40) NULL,
  created_at VARCHAR(40) NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS scrape_jobs (
  id {{pk}},
  run_id VARCHAR(64) NOT NULL,
  source_id BIGINT NOT NULL,
  query VARCHAR(255) NOT NULL,
  service VARCHAR(64) NOT NULL,
  country VARCHAR(8) NOT NULL,
  city VARCHAR(128) NOT NULL,
  status VARCHAR(16) NOT NULL,
  leads_found INTEGER NOT NULL DEFAULT 0,
  leads_new INTEGER NOT NULL DEFAULT 0,
  leads_duplicate INTEGER NOT NULL DEFAULT 0,
  leads_enriched INTEGER NOT NULL DEFAULT 0,
  error_message TEXT NOT NULL,
  started_at VARCHAR(40) NOT NULL,
  completed_at VARCHAR(40) NULL
)`, `
CREATE TABLE IF NOT EXISTS email_campaigns (
  id {{pk}},
  name VARCHAR(255) NOT NULL,
  subject_template TEXT NOT NULL,
  body_template TEXT NOT NULL,
  target_service VARCHAR(64) NOT NULL,
  target_countries TEXT NOT NULL,
  min_relevance INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL,
  daily_limit INTEGER NOT NULL DEFAULT 0,
  sent_count INTEGER NOT NULL DEFAULT 0,
  opened_count INTEGER NOT NULL DEFAULT 0,
  replied_count INTEGER NOT NULL DEFAULT 0
)`, `
CREATE TABLE IF NOT EXISTS email_logs (
  id {{pk}},
  lead_id BIGINT NOT NULL,
  campaign_id BIGINT NOT NULL,
  recipient VARCHAR(255) NOT NULL,
  subject TEXT NOT NULL,
  status VARCHAR(16) NOT NULL,
  message_id VARCHAR(255) NOT NULL,
  error_message TEXT NOT NULL,
  sent_at VARCHAR(40) NULL,
  created_at VARCHAR(40) NOT NULL
)`}

var indexes = []string{
	`CREATE INDEX idx_leads_status_score ON leads(status, relevance_score)`,
	`CREATE INDEX idx_leads_source_url ON leads(source_url)`,
	`CREATE INDEX idx_leads_phone_country ON leads(phone, country)`,
	`CREATE INDEX idx_scrape_jobs_started ON scrape_jobs(started_at)`,
	`CREATE INDEX idx_email_logs_campaign_lead ON email_logs(campaign_id, lead_id)`,
	`CREATE INDEX idx_email_logs_status_sent ON email_logs(status, sent_at)`,
	`CREATE INDEX idx_email_logs_message_id ON email_logs(message_id)`,
	`CREATE INDEX idx_email_logs_recipient ON email_logs(recipient)`,
}

func (d *DB) dedupIndexes() []string {
	if d.opts.StrictDedup {
		return []string{
			`CREATE UNIQUE INDEX ux_leads_website ON leads(website)`,
			`CREATE UNIQUE INDEX ux_leads_email ON leads(email)`,
		}
	}
	return []string{
		`CREATE INDEX idx_leads_website ON leads(website)`,
		`CREATE INDEX idx_leads_email ON leads(email)`,
	}
}

func (d *DB) ddl(stmt string) string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.Driver == DriverMySQL {
		pk = "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	}
	return strings.ReplaceAll(stmt, "{{pk}}", pk)
}

// Migrate creates the schema. It is idempotent on both drivers: sqlite
// tracks PRAGMA user_version, mysql relies on IF NOT EXISTS and ignores
// already-present indexes.
func (d *DB) Migrate(ctx context.Context) error {
	if d.Driver == DriverMySQL {
		return d.migrateMySQL(ctx)
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v < schemaVersion {
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, d.ddl(t)); err != nil {
				return fmt.Errorf("create table: %w", err)
			}
		}
		for _, ix := range indexes {
			if _, err := tx.ExecContext(ctx, ifNotExists(ix)); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
			return err
		}
	}

	// dedup indexes follow the current strictness, not the schema version
	for _, ix := range d.dedupIndexes() {
		if _, err := tx.ExecContext(ctx, ifNotExists(ix)); err != nil {
			return fmt.Errorf("create dedup index (existing duplicate rows?): %w", err)
		}
	}

	return tx.Commit()
}

func (d *DB) migrateMySQL(ctx context.Context) error {
	for _, t := range tables {
		if _, err := d.Pool.ExecContext(ctx, d.ddl(t)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, ix := range append(append([]string{}, indexes...), d.dedupIndexes()...) {
		if _, err := d.Pool.ExecContext(ctx, ix); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func ifNotExists(stmt string) string {
	stmt = strings.Replace(stmt, "CREATE UNIQUE INDEX ", "CREATE UNIQUE INDEX IF NOT EXISTS ", 1)
	return strings.Replace(stmt, "CREATE INDEX ", "CREATE INDEX IF NOT EXISTS ", 1)
}
