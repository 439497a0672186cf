package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"leadgen-engine/internal/domain"
)

const campaignColumns = `id, name, subject_template, body_template, target_service, target_countries,
min_relevance, active, daily_limit, sent_count, opened_count, replied_count`

// Counter columns that IncrementCampaignCounter may touch.
const (
	CounterSent    = "sent_count"
	CounterOpened  = "opened_count"
	CounterReplied = "replied_count"
)

func (d *DB) CreateCampaign(ctx context.Context, c domain.Campaign) (int64, error) {
	countries := make([]string, 0, len(c.TargetCountries))
	for _, cc := range c.TargetCountries {
		if cc = strings.ToUpper(strings.TrimSpace(cc)); cc != "" {
			countries = append(countries, cc)
		}
	}
	cj, _ := json.Marshal(countries)

	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO email_campaigns (name, subject_template, body_template, target_service, target_countries,
  min_relevance, active, daily_limit, sent_count, opened_count, replied_count)
VALUES (?,?,?,?,?,?,?,?,0,0,0);`,
		c.Name, c.SubjectTemplate, c.BodyTemplate, c.TargetService, string(cj),
		domain.ClampScore(c.MinRelevance), boolInt(c.Active), c.DailyLimit,
	)
	if err != nil {
		return 0, fmt.Errorf("insert campaign: %w", err)
	}
	return res.LastInsertId()
}

func (d *DB) GetCampaign(ctx context.Context, id int64) (domain.Campaign, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM email_campaigns WHERE id = ?;`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Campaign{}, fmt.Errorf("campaign %d: %w", id, ErrNotFound)
	}
	return c, err
}

func (d *DB) ListActiveCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM email_campaigns WHERE active = 1 ORDER BY id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IncrementCampaignCounter adds n to one of the Counter* columns.
func (d *DB) IncrementCampaignCounter(ctx context.Context, id int64, counter string, n int) error {
	switch counter {
	case CounterSent, CounterOpened, CounterReplied:
	default:
		return fmt.Errorf("unknown campaign counter %q", counter)
	}
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE email_campaigns SET `+counter+` = `+counter+` + ? WHERE id = ?;`, n, id)
	if err != nil {
		return fmt.Errorf("increment %s: %w", counter, err)
	}
	return nil
}

func scanCampaign(r scanner) (domain.Campaign, error) {
	var c domain.Campaign
	var countries string
	var active int
	if err := r.Scan(&c.ID, &c.Name, &c.SubjectTemplate, &c.BodyTemplate, &c.TargetService, &countries,
		&c.MinRelevance, &active, &c.DailyLimit, &c.SentCount, &c.OpenedCount, &c.RepliedCount); err != nil {
		return c, err
	}
	c.Active = active != 0
	_ = json.Unmarshal([]byte(countries), &c.TargetCountries)
	return c, nil
}
