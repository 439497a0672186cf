package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
)

type InsertResult struct {
	Success     bool  `json:"success"`
	IsDuplicate bool  `json:"isDuplicate"`
	ID          int64 `json:"id,omitempty"`
}

type BulkResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

const leadColumns = `id, name, company_name, company_name_local, email, phone, website, industry,
company_size, description, address, city, country, linkedin_url, facebook_url, instagram_url,
service, relevance_score, rating, tags, source_id, source_url, scraped, status, deal_value,
last_contacted_at, created_at`

func normalizeLead(l *domain.Lead) error {
	l.Country = strings.ToUpper(strings.TrimSpace(l.Country))
	if l.Country == "" {
		return fmt.Errorf("%w: country is required", ErrInvalidLead)
	}
	l.Email = strings.ToLower(strings.TrimSpace(l.Email))
	l.Website = strings.TrimSpace(l.Website)
	l.RelevanceScore = domain.ClampScore(l.RelevanceScore)
	if l.Tags == nil {
		l.Tags = []string{}
	}
	return nil
}

// FindDuplicate returns the id of a stored lead with the given website or
// email, or 0. Empty values never match.
func (d *DB) FindDuplicate(ctx context.Context, website, email string) (int64, error) {
	website = strings.TrimSpace(website)
	email = strings.ToLower(strings.TrimSpace(email))

	var conds []string
	var args []any
	if website != "" {
		conds = append(conds, "website = ?")
		args = append(args, website)
	}
	if email != "" {
		conds = append(conds, "email = ?")
		args = append(args, email)
	}
	if len(conds) == 0 {
		return 0, nil
	}

	var id int64
	err := d.Pool.QueryRowContext(ctx,
		`SELECT id FROM leads WHERE `+strings.Join(conds, " OR ")+` LIMIT 1;`, args...,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("duplicate check: %w", err)
	}
	return id, nil
}

// findListingDuplicate identifies a lead that has neither website nor email
// by its listing URL or, failing that, its phone within the country.
func (d *DB) findListingDuplicate(ctx context.Context, sourceURL, phone, country string) (int64, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	phone = strings.TrimSpace(phone)

	var conds []string
	var args []any
	if sourceURL != "" {
		conds = append(conds, "source_url = ?")
		args = append(args, sourceURL)
	}
	if phone != "" {
		conds = append(conds, "(phone = ? AND country = ?)")
		args = append(args, phone, country)
	}
	if len(conds) == 0 {
		return 0, nil
	}

	var id int64
	err := d.Pool.QueryRowContext(ctx,
		`SELECT id FROM leads WHERE `+strings.Join(conds, " OR ")+` LIMIT 1;`, args...,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing duplicate check: %w", err)
	}
	return id, nil
}

// InsertLead stores l unless a lead with the same website or email exists.
// A lead with neither falls back to its listing URL and phone.
// The check and the insert are separate statements; two writers can race
// between them unless strict dedup indexes are enabled.
func (d *DB) InsertLead(ctx context.Context, l domain.Lead) (InsertResult, error) {
	if err := normalizeLead(&l); err != nil {
		return InsertResult{}, err
	}

	dup, err := d.FindDuplicate(ctx, l.Website, l.Email)
	if err == nil && dup == 0 && l.Website == "" && l.Email == "" {
		dup, err = d.findListingDuplicate(ctx, l.SourceURL, l.Phone, l.Country)
	}
	if err != nil {
		return InsertResult{}, err
	}
	if dup != 0 {
		return InsertResult{IsDuplicate: true}, nil
	}

	tags, _ := json.Marshal(l.Tags)
	var sourceID any
	if l.SourceID != 0 {
		sourceID = l.SourceID
	}

	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO leads (name, company_name, company_name_local, email, phone, website, industry,
  company_size, description, address, city, country, linkedin_url, facebook_url, instagram_url,
  service, relevance_score, rating, tags, source_id, source_url, scraped, status, deal_value,
  last_contacted_at, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		l.Name, l.CompanyName, l.CompanyNameLocal, nullString(l.Email), l.Phone, nullString(l.Website), l.Industry,
		string(l.CompanySize), l.Description, l.Address, l.City, l.Country, l.LinkedInURL, l.FacebookURL, l.InstagramURL,
		l.Service, l.RelevanceScore, l.Rating, string(tags), sourceID, l.SourceURL, boolInt(l.Scraped), string(domain.LeadNew), 0,
		nil, ts(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return InsertResult{IsDuplicate: true}, nil
		}
		return InsertResult{}, fmt.Errorf("insert lead: %w", err)
	}
	id, _ := res.LastInsertId()
	return InsertResult{Success: true, ID: id}, nil
}

// BulkInsert inserts leads one at a time so every row gets its own
// duplicate check. Invalid rows are skipped; a store error stops the batch
// and is returned with the counts so far.
func (d *DB) BulkInsert(ctx context.Context, leads []domain.Lead) (BulkResult, error) {
	var out BulkResult
	for _, l := range leads {
		r, err := d.InsertLead(ctx, l)
		if errors.Is(err, ErrInvalidLead) {
			log.Printf("[store] warn: skip lead name=%q err=%v", l.Name, err)
			out.Skipped++
			continue
		}
		if err != nil {
			return out, err
		}
		if r.IsDuplicate {
			out.Duplicates++
		} else if r.Success {
			out.Inserted++
		}
	}
	return out, nil
}

// LeadsForCampaign returns uncontacted leads with an email that match the
// campaign's targeting and have no successful send for it, best first.
func (d *DB) LeadsForCampaign(ctx context.Context, campaignID int64, limit int) ([]domain.Lead, error) {
	c, err := d.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	minRel := c.MinRelevance
	if d.opts.RelevanceFloor > minRel {
		minRel = d.opts.RelevanceFloor
	}

	q := `SELECT ` + leadColumns + ` FROM leads l
WHERE l.status = ? AND l.email IS NOT NULL AND l.email <> '' AND l.relevance_score >= ?
  AND NOT EXISTS (
    SELECT 1 FROM email_logs e
    WHERE e.lead_id = l.id AND e.campaign_id = ? AND e.status IN (` + placeholders(len(domain.SentStatuses)) + `))`
	args := []any{string(domain.LeadNew), minRel, c.ID}
	for _, s := range domain.SentStatuses {
		args = append(args, string(s))
	}

	if c.TargetService != "" {
		q += ` AND l.service = ?`
		args = append(args, c.TargetService)
	}
	if len(c.TargetCountries) > 0 {
		q += ` AND l.country IN (` + placeholders(len(c.TargetCountries)) + `)`
		for _, cc := range c.TargetCountries {
			args = append(args, strings.ToUpper(cc))
		}
	}
	q += ` ORDER BY l.relevance_score DESC, l.id ASC LIMIT ?;`
	args = append(args, limit)

	return d.queryLeads(ctx, q, args...)
}

// MarkContacted moves a lead to contacted and stamps the contact time.
func (d *DB) MarkContacted(ctx context.Context, leadID int64) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE leads SET status = ?, last_contacted_at = ? WHERE id = ?;`,
		string(domain.LeadContacted), ts(time.Now()), leadID,
	)
	if err != nil {
		return fmt.Errorf("mark contacted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) GetLead(ctx context.Context, id int64) (domain.Lead, error) {
	leads, err := d.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ? LIMIT 1;`, id)
	if err != nil {
		return domain.Lead{}, err
	}
	if len(leads) == 0 {
		return domain.Lead{}, ErrNotFound
	}
	return leads[0], nil
}

// ListLeadsByStatus pages through leads in id order, starting after afterID.
func (d *DB) ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, afterID int64, limit int) ([]domain.Lead, error) {
	return d.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status = ? AND id > ? ORDER BY id ASC LIMIT ?;`,
		string(status), afterID, limit,
	)
}

func (d *DB) UpdateLeadCategory(ctx context.Context, id int64, service string, score int) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE leads SET service = ?, relevance_score = ? WHERE id = ?;`,
		service, domain.ClampScore(score), id,
	)
	if err != nil {
		return fmt.Errorf("update lead category: %w", err)
	}
	return nil
}

// CountLeadsByStatus is used by the ops API.
func (d *DB) CountLeadsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func (d *DB) queryLeads(ctx context.Context, q string, args ...any) ([]domain.Lead, error) {
	rows, err := d.Pool.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		var l domain.Lead
		var email, website, lastContacted sql.NullString
		var sourceID sql.NullInt64
		var size, status, tagsJSON, createdAt string
		var scraped int
		if err := rows.Scan(
			&l.ID, &l.Name, &l.CompanyName, &l.CompanyNameLocal, &email, &l.Phone, &website, &l.Industry,
			&size, &l.Description, &l.Address, &l.City, &l.Country, &l.LinkedInURL, &l.FacebookURL, &l.InstagramURL,
			&l.Service, &l.RelevanceScore, &l.Rating, &tagsJSON, &sourceID, &l.SourceURL, &scraped, &status, &l.DealValue,
			&lastContacted, &createdAt,
		); err != nil {
			return nil, err
		}
		l.Email = email.String
		l.Website = website.String
		l.CompanySize = domain.CompanySize(size)
		l.Status = domain.LeadStatus(status)
		l.SourceID = sourceID.Int64
		l.Scraped = scraped != 0
		l.LastContactedAt = parseTS(lastContacted)
		_ = json.Unmarshal([]byte(tagsJSON), &l.Tags)
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, l)
	}
	return out, rows.Err()
}
