package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store handles CRUD for automation_templates and automation_instances.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const templateColumns = `id, name, COALESCE(description,''), active, trigger_config, steps, total_triggered, total_completed, total_stopped, created_at, updated_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*Template, error) {
	var t Template
	var triggerJSON, stepsJSON []byte
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Active, &triggerJSON, &stepsJSON,
		&t.Stats.TotalTriggered, &t.Stats.TotalCompleted, &t.Stats.TotalStopped, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(triggerJSON, &t.Trigger)
	json.Unmarshal(stepsJSON, &t.Steps)
	return &t, nil
}

func (s *Store) CreateTemplate(ctx context.Context, t *Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	triggerJSON, _ := json.Marshal(t.Trigger)
	stepsJSON, _ := json.Marshal(t.Steps)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO automation_templates (id, name, description, active, trigger_config, steps)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.Description, t.Active, triggerJSON, stepsJSON)
	return err
}

func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM automation_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context, activeOnly bool) ([]Template, error) {
	query := `SELECT ` + templateColumns + ` FROM automation_templates`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			continue
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *Store) UpdateTemplate(ctx context.Context, t *Template) error {
	triggerJSON, _ := json.Marshal(t.Trigger)
	stepsJSON, _ := json.Marshal(t.Steps)
	_, err := s.db.ExecContext(ctx,
		`UPDATE automation_templates SET name=$1, description=$2, active=$3, trigger_config=$4, steps=$5, updated_at=NOW()
		WHERE id = $6`,
		t.Name, t.Description, t.Active, triggerJSON, stepsJSON, t.ID)
	return err
}

func (s *Store) SetTemplateActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE automation_templates SET active=$1, updated_at=NOW() WHERE id = $2`, active, id)
	return err
}

// DeleteTemplate removes a template; its instances go with it via the
// ON DELETE CASCADE foreign key.
func (s *Store) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM automation_templates WHERE id = $1`, id)
	return err
}

func (s *Store) incrementStat(ctx context.Context, id uuid.UUID, column string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE automation_templates SET `+column+` = `+column+` + 1, updated_at=NOW() WHERE id = $1`, id)
	return err
}

func (s *Store) IncrementTriggered(ctx context.Context, id uuid.UUID) error {
	return s.incrementStat(ctx, id, "total_triggered")
}

func (s *Store) IncrementCompleted(ctx context.Context, id uuid.UUID) error {
	return s.incrementStat(ctx, id, "total_completed")
}

func (s *Store) IncrementStopped(ctx context.Context, id uuid.UUID) error {
	return s.incrementStat(ctx, id, "total_stopped")
}

const instanceColumns = `id, template_id, lead_id, status, current_step, next_action_at, history, COALESCE(stop_reason,''), stopped_at, created_at, updated_at`

func scanInstance(row interface{ Scan(...interface{}) error }) (*Instance, error) {
	var i Instance
	var historyJSON []byte
	err := row.Scan(&i.ID, &i.TemplateID, &i.LeadID, &i.Status, &i.CurrentStep, &i.NextActionAt,
		&historyJSON, &i.StopReason, &i.StoppedAt, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(historyJSON, &i.History)
	return &i, nil
}

// CreateInstanceIfNoneActive inserts a new active instance unless the
// (template, lead) pair already has one. The conditional insert plus the
// partial unique index make at-most-one-active hold even under concurrent
// sweeps. Returns false when an active instance already exists.
func (s *Store) CreateInstanceIfNoneActive(ctx context.Context, inst *Instance) (bool, error) {
	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	if inst.History == nil {
		inst.History = []ExecutionRecord{}
	}
	historyJSON, _ := json.Marshal(inst.History)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO automation_instances (id, template_id, lead_id, status, current_step, next_action_at, history)
		SELECT $1, $2, $3, 'active', $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM automation_instances WHERE template_id = $2 AND lead_id = $3 AND status = 'active'
		)`,
		inst.ID, inst.TemplateID, inst.LeadID, inst.CurrentStep, inst.NextActionAt, historyJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Lost the race to the unique index; someone else created it.
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	inst.Status = StatusActive
	return true, nil
}

func (s *Store) GetInstance(ctx context.Context, id uuid.UUID) (*Instance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM automation_instances WHERE id = $1`, id)
	i, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

// ListDueInstances returns active instances whose wake time has elapsed.
func (s *Store) ListDueInstances(ctx context.Context, now time.Time, limit int) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM automation_instances
		WHERE status = 'active' AND next_action_at <= $1
		ORDER BY next_action_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			continue
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// InstanceFilter narrows ListInstances. Zero values are wildcards.
type InstanceFilter struct {
	TemplateID uuid.UUID
	LeadID     uuid.UUID
	Status     string
	Limit      int
}

func (s *Store) ListInstances(ctx context.Context, f InstanceFilter) ([]Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM automation_instances WHERE 1=1`
	args := []interface{}{}
	n := 1
	if f.TemplateID != uuid.Nil {
		query += fmt.Sprintf(" AND template_id = $%d", n)
		args = append(args, f.TemplateID)
		n++
	}
	if f.LeadID != uuid.Nil {
		query += fmt.Sprintf(" AND lead_id = $%d", n)
		args = append(args, f.LeadID)
		n++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, f.Status)
		n++
	}
	query += ` ORDER BY created_at DESC`
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			continue
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// AdvanceInstance persists a tick's mutation with a compare-and-set on
// (status, current_step) so a re-polled or overlapping sweep cannot apply
// the same advancement twice. Returns false when the guard did not match.
func (s *Store) AdvanceInstance(ctx context.Context, inst *Instance, fromStep int) (bool, error) {
	historyJSON, _ := json.Marshal(inst.History)
	res, err := s.db.ExecContext(ctx,
		`UPDATE automation_instances
		SET status=$1, current_step=$2, next_action_at=$3, history=$4, stop_reason=NULLIF($5,''), stopped_at=$6, updated_at=NOW()
		WHERE id = $7 AND status = 'active' AND current_step = $8`,
		inst.Status, inst.CurrentStep, inst.NextActionAt, historyJSON, inst.StopReason, inst.StoppedAt, inst.ID, fromStep)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// StopInstance transitions an active or paused instance to stopped.
// Terminal instances are left untouched; returns false when no transition
// happened.
func (s *Store) StopInstance(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE automation_instances
		SET status='stopped', stop_reason=$1, stopped_at=NOW(), updated_at=NOW()
		WHERE id = $2 AND status IN ('active', 'paused')`, reason, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM automation_instances WHERE id = $1`, id)
	return err
}

// CountInstancesByStatus returns instance counts keyed by status.
func (s *Store) CountInstancesByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM automation_instances GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			continue
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
