package crm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store handles CRUD for leads, interactions, tasks and notifications.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const leadColumns = `id, full_name, COALESCE(first_name,''), COALESCE(business_name,''), COALESCE(email,''), COALESCE(phone,''), COALESCE(source,''), score, status, tags, assigned_to, last_contact_at, created_at, updated_at`

func scanLead(row interface{ Scan(...interface{}) error }) (*Lead, error) {
	var l Lead
	var tagsJSON []byte
	err := row.Scan(&l.ID, &l.FullName, &l.FirstName, &l.BusinessName, &l.Email, &l.Phone,
		&l.Source, &l.Score, &l.Status, &tagsJSON, &l.AssignedTo, &l.LastContactAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(tagsJSON, &l.Tags)
	return &l, nil
}

func (s *Store) CreateLead(ctx context.Context, l *Lead) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = StatusNew
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(l.Tags)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, full_name, first_name, business_name, email, phone, source, score, status, tags, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ID, l.FullName, l.FirstName, l.BusinessName, l.Email, l.Phone, l.Source, l.Score, l.Status, tagsJSON, l.AssignedTo)
	return err
}

func (s *Store) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListLeads returns leads matching the filter. Zero-valued filter fields are
// treated as wildcards.
func (s *Store) ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	args := []interface{}{}
	n := 1

	if len(f.Statuses) > 0 {
		statusJSON, _ := json.Marshal(f.Statuses)
		query += fmt.Sprintf(" AND status = ANY(SELECT jsonb_array_elements_text($%d::jsonb))", n)
		args = append(args, statusJSON)
		n++
	}
	if f.MinScore != nil {
		query += fmt.Sprintf(" AND score >= $%d", n)
		args = append(args, *f.MinScore)
		n++
	}
	if f.CreatedAfter != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", n)
		args = append(args, *f.CreatedAfter)
		n++
	}
	if f.LastContactBefore != nil {
		query += fmt.Sprintf(" AND (last_contact_at IS NULL OR last_contact_at <= $%d)", n)
		args = append(args, *f.LastContactBefore)
		n++
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			continue
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// AdjustScore applies a relative delta to the lead's score, clamped at zero.
func (s *Store) AdjustScore(ctx context.Context, id uuid.UUID, delta int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET score = GREATEST(score + $1, 0), updated_at = NOW() WHERE id = $2`, delta, id)
	return err
}

// SetScore overwrites the lead's score with an absolute value.
func (s *Store) SetScore(ctx context.Context, id uuid.UUID, score int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET score = $1, updated_at = NOW() WHERE id = $2`, score, id)
	return err
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// AddTag appends a tag to the lead's tag set. Adding a tag the lead already
// has is a no-op.
func (s *Store) AddTag(ctx context.Context, id uuid.UUID, tag string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET tags = tags || to_jsonb($1::text), updated_at = NOW()
		WHERE id = $2 AND NOT tags ? $1`, tag, id)
	return err
}

// AddInteraction records a touch point and bumps the lead's last-contact
// timestamp.
func (s *Store) AddInteraction(ctx context.Context, in *Interaction) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_interactions (id, lead_id, channel, direction, content)
		VALUES ($1, $2, $3, $4, $5)`,
		in.ID, in.LeadID, in.Channel, in.Direction, in.Content)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE leads SET last_contact_at = NOW(), updated_at = NOW() WHERE id = $1`, in.LeadID)
	return err
}

// LastInboundAt returns the timestamp of the lead's most recent inbound
// interaction, or nil when the lead never responded. An empty channel matches
// any channel.
func (s *Store) LastInboundAt(ctx context.Context, leadID uuid.UUID, channel string) (*time.Time, error) {
	query := `SELECT MAX(created_at) FROM lead_interactions WHERE lead_id = $1 AND direction = 'inbound'`
	args := []interface{}{leadID}
	if channel != "" {
		query += ` AND channel = $2`
		args = append(args, channel)
	}
	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (s *Store) ListInteractions(ctx context.Context, leadID uuid.UUID, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, channel, direction, content, created_at
		FROM lead_interactions WHERE lead_id = $1 ORDER BY created_at DESC LIMIT $2`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ID, &in.LeadID, &in.Channel, &in.Direction, &in.Content, &in.CreatedAt); err != nil {
			continue
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
