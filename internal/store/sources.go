package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
)

const sourceColumns = `id, name, type, base_url, countries, active, scrape_config, last_scraped_at, leads_found`

func (d *DB) CreateSource(ctx context.Context, s domain.LeadSource) (int64, error) {
	countries := make([]string, 0, len(s.Countries))
	for _, c := range s.Countries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			countries = append(countries, c)
		}
	}
	cj, _ := json.Marshal(countries)
	cfg := s.ScrapeConfig
	if strings.TrimSpace(cfg) == "" {
		cfg = "{}"
	}

	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO lead_sources (name, type, base_url, countries, active, scrape_config, last_scraped_at, leads_found)
VALUES (?,?,?,?,?,?,?,?);`,
		s.Name, string(s.Type), s.BaseURL, string(cj), boolInt(s.Active), cfg, nullTS(s.LastScrapedAt), s.LeadsFound,
	)
	if err != nil {
		return 0, fmt.Errorf("insert source: %w", err)
	}
	return res.LastInsertId()
}

func (d *DB) ListActiveSources(ctx context.Context) ([]domain.LeadSource, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM lead_sources WHERE active = 1 ORDER BY id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []domain.LeadSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) GetSource(ctx context.Context, id int64) (domain.LeadSource, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM lead_sources WHERE id = ?;`, id)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LeadSource{}, ErrNotFound
	}
	return s, err
}

// TouchSource stamps last_scraped_at and adds inserted to the running total.
func (d *DB) TouchSource(ctx context.Context, id int64, inserted int, at time.Time) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE lead_sources SET last_scraped_at = ?, leads_found = leads_found + ? WHERE id = ?;`,
		ts(at), inserted, id,
	)
	if err != nil {
		return fmt.Errorf("touch source: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(r scanner) (domain.LeadSource, error) {
	var s domain.LeadSource
	var typ, countries string
	var active int
	var last sql.NullString
	if err := r.Scan(&s.ID, &s.Name, &typ, &s.BaseURL, &countries, &active, &s.ScrapeConfig, &last, &s.LeadsFound); err != nil {
		return s, err
	}
	s.Type = domain.SourceType(typ)
	s.Active = active != 0
	s.LastScrapedAt = parseTS(last)
	_ = json.Unmarshal([]byte(countries), &s.Countries)
	return s, nil
}
