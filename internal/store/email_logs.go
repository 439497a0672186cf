package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
)

const logColumns = `id, lead_id, campaign_id, recipient, subject, status, message_id, error_message, sent_at, created_at`

// CreateEmailLog records a send attempt in the sending state.
func (d *DB) CreateEmailLog(ctx context.Context, l domain.EmailLog) (int64, error) {
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO email_logs (lead_id, campaign_id, recipient, subject, status, message_id, error_message, sent_at, created_at)
VALUES (?,?,?,?,?,'','',NULL,?);`,
		l.LeadID, l.CampaignID, strings.ToLower(strings.TrimSpace(l.Recipient)), l.Subject,
		string(domain.EmailSending), ts(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert email log: %w", err)
	}
	return res.LastInsertId()
}

func (d *DB) MarkEmailSent(ctx context.Context, id int64, messageID string, at time.Time) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE email_logs SET status = ?, message_id = ?, sent_at = ? WHERE id = ?;`,
		string(domain.EmailSent), messageID, ts(at), id,
	)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return nil
}

func (d *DB) MarkEmailFailed(ctx context.Context, id int64, msg string) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE email_logs SET status = ?, error_message = ? WHERE id = ?;`,
		string(domain.EmailFailed), msg, id,
	)
	if err != nil {
		return fmt.Errorf("mark email failed: %w", err)
	}
	return nil
}

// CountSentSince counts successful sends with sent_at at or after since.
func (d *DB) CountSentSince(ctx context.Context, since time.Time) (int, error) {
	args := []any{ts(since)}
	for _, s := range domain.SentStatuses {
		args = append(args, string(s))
	}
	var n int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_logs WHERE sent_at >= ? AND status IN (`+placeholders(len(domain.SentStatuses))+`);`,
		args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent: %w", err)
	}
	return n, nil
}

func (d *DB) FindLogByMessageID(ctx context.Context, messageID string) (domain.EmailLog, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return domain.EmailLog{}, ErrNotFound
	}
	return d.oneLog(ctx, `SELECT `+logColumns+` FROM email_logs WHERE message_id = ? ORDER BY id DESC LIMIT 1;`, messageID)
}

// FindLatestSentByRecipient returns the newest log to addr in a sent state.
func (d *DB) FindLatestSentByRecipient(ctx context.Context, addr string) (domain.EmailLog, error) {
	args := []any{strings.ToLower(strings.TrimSpace(addr))}
	for _, s := range domain.SentStatuses {
		args = append(args, string(s))
	}
	return d.oneLog(ctx,
		`SELECT `+logColumns+` FROM email_logs WHERE recipient = ? AND status IN (`+placeholders(len(domain.SentStatuses))+`)
ORDER BY id DESC LIMIT 1;`, args...)
}

// MarkReplied flips a log to replied. It reports false when the log was
// already replied so callers count each reply once.
func (d *DB) MarkReplied(ctx context.Context, id int64) (bool, error) {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE email_logs SET status = ? WHERE id = ? AND status <> ?;`,
		string(domain.EmailReplied), id, string(domain.EmailReplied),
	)
	if err != nil {
		return false, fmt.Errorf("mark replied: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (d *DB) ListLogsForLead(ctx context.Context, leadID int64) ([]domain.EmailLog, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT `+logColumns+` FROM email_logs WHERE lead_id = ? ORDER BY id ASC;`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EmailLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (d *DB) oneLog(ctx context.Context, q string, args ...any) (domain.EmailLog, error) {
	l, err := scanLog(d.Pool.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmailLog{}, ErrNotFound
	}
	if err != nil {
		return domain.EmailLog{}, fmt.Errorf("query email log: %w", err)
	}
	return l, nil
}

func scanLog(r scanner) (domain.EmailLog, error) {
	var l domain.EmailLog
	var status, created string
	var sent sql.NullString
	if err := r.Scan(&l.ID, &l.LeadID, &l.CampaignID, &l.Recipient, &l.Subject, &status,
		&l.MessageID, &l.ErrorMessage, &sent, &created); err != nil {
		return l, err
	}
	l.Status = domain.EmailStatus(status)
	l.SentAt = parseTS(sent)
	l.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return l, nil
}
