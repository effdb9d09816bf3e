package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const workItemColumns = `id, title, category, phase, status, progress,
	dependencies, checklists, metadata,
	created_at, updated_at, archived_at`

func (s *PostgresStore) CreateWorkItem(ctx context.Context, item *WorkItem) error {
	depsJSON, _ := json.Marshal(item.Dependencies)
	checklistsJSON, _ := json.Marshal(item.Checklists)
	metadataJSON, _ := json.Marshal(item.Metadata)

	return s.pool.QueryRow(ctx, `
		INSERT INTO work_items (title, category, phase, status, progress,
			dependencies, checklists, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		item.Title, item.Category, item.Phase, item.Status, item.Progress,
		depsJSON, checklistsJSON, metadataJSON,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (s *PostgresStore) GetWorkItem(ctx context.Context, id uuid.UUID) (*WorkItem, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+workItemColumns+`
		FROM work_items WHERE id = $1 AND archived_at IS NULL`, id)
	item, err := scanWorkItem(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return item, err
}

func (s *PostgresStore) ListWorkItems(ctx context.Context, filter WorkItemFilter) ([]*WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE archived_at IS NULL`
	args := []interface{}{}
	n := 0

	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}
	if filter.Phase != nil {
		n++
		query += fmt.Sprintf(" AND phase = $%d", n)
		args = append(args, string(*filter.Phase))
	}
	if filter.Category != "" {
		n++
		query += fmt.Sprintf(" AND category = $%d", n)
		args = append(args, filter.Category)
	}

	query += " ORDER BY created_at ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateWorkItem writes mutable descriptive fields. Phase and progress are
// deliberately excluded; they only move through UpdateWorkItemPhase.
func (s *PostgresStore) UpdateWorkItem(ctx context.Context, item *WorkItem) error {
	depsJSON, _ := json.Marshal(item.Dependencies)
	checklistsJSON, _ := json.Marshal(item.Checklists)
	metadataJSON, _ := json.Marshal(item.Metadata)

	_, err := s.pool.Exec(ctx, `
		UPDATE work_items SET
			title = $2, category = $3, status = $4,
			dependencies = $5, checklists = $6, metadata = $7,
			updated_at = now()
		WHERE id = $1`,
		item.ID, item.Title, item.Category, item.Status,
		depsJSON, checklistsJSON, metadataJSON,
	)
	return err
}

func (s *PostgresStore) UpdateWorkItemPhase(ctx context.Context, id uuid.UUID, from, to Phase, progress float64, status ItemStatus) error {
	// Application-level compare-and-swap: the phase predicate makes concurrent
	// advances race to a single winner.
	tag, err := s.pool.Exec(ctx, `
		UPDATE work_items SET phase = $3, progress = $4, status = $5, updated_at = now()
		WHERE id = $1 AND phase = $2 AND archived_at IS NULL`,
		id, from, to, progress, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (s *PostgresStore) ArchiveWorkItem(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE work_items SET archived_at = now(), updated_at = now()
		WHERE id = $1 AND archived_at IS NULL`, id)
	return err
}

const handoffColumns = `id, item_id, from_phase, to_phase, status,
	sections, score, issues, created_at, accepted_at`

func (s *PostgresStore) CreateHandoff(ctx context.Context, h *Handoff) error {
	sectionsJSON, _ := json.Marshal(h.Sections)

	return s.pool.QueryRow(ctx, `
		INSERT INTO handoffs (item_id, from_phase, to_phase, status, sections, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		h.ItemID, h.FromPhase, h.ToPhase, h.Status, sectionsJSON, h.Score,
	).Scan(&h.ID, &h.CreatedAt)
}

func (s *PostgresStore) GetHandoff(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+handoffColumns+` FROM handoffs WHERE id = $1`, id)
	h, err := scanHandoff(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return h, err
}

func (s *PostgresStore) ListHandoffs(ctx context.Context, itemID uuid.UUID) ([]*Handoff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+handoffColumns+`
		FROM handoffs WHERE item_id = $1
		ORDER BY created_at DESC, id DESC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handoffs []*Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		handoffs = append(handoffs, h)
	}
	return handoffs, rows.Err()
}

// LatestHandoff returns the most recent handoff for the (item, from, to)
// tuple: highest created_at, ties broken by insertion order.
func (s *PostgresStore) LatestHandoff(ctx context.Context, itemID uuid.UUID, from, to Phase) (*Handoff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+handoffColumns+`
		FROM handoffs WHERE item_id = $1 AND from_phase = $2 AND to_phase = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, itemID, from, to)
	h, err := scanHandoff(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return h, err
}

func (s *PostgresStore) UpdateHandoffOutcome(ctx context.Context, id uuid.UUID, status HandoffStatus, score float64, issues []string) error {
	issuesJSON, _ := json.Marshal(issues)
	_, err := s.pool.Exec(ctx, `
		UPDATE handoffs SET status = $2, score = $3, issues = $4,
			accepted_at = CASE WHEN $2 = 'accepted' THEN now() ELSE accepted_at END
		WHERE id = $1`,
		id, status, score, issuesJSON,
	)
	return err
}

const gateResultColumns = `id, gate_id, item_id, score, verdict, rules, created_at`

func (s *PostgresStore) AppendGateResult(ctx context.Context, result *GateResult) error {
	rulesJSON, _ := json.Marshal(result.Rules)

	return s.pool.QueryRow(ctx, `
		INSERT INTO gate_results (gate_id, item_id, score, verdict, rules)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		result.GateID, result.ItemID, result.Score, result.Verdict, rulesJSON,
	).Scan(&result.ID, &result.CreatedAt)
}

func (s *PostgresStore) ListGateResults(ctx context.Context, itemID uuid.UUID) ([]*GateResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+gateResultColumns+`
		FROM gate_results WHERE item_id = $1
		ORDER BY created_at DESC, id DESC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*GateResult
	for rows.Next() {
		r, err := scanGateResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) LatestGateResult(ctx context.Context, gateID string, itemID uuid.UUID) (*GateResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+gateResultColumns+`
		FROM gate_results WHERE gate_id = $1 AND item_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, gateID, itemID)
	r, err := scanGateResult(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func scanWorkItem(row pgx.Row) (*WorkItem, error) {
	item := &WorkItem{}
	var depsJSON, checklistsJSON, metadataJSON []byte
	err := row.Scan(
		&item.ID, &item.Title, &item.Category, &item.Phase, &item.Status, &item.Progress,
		&depsJSON, &checklistsJSON, &metadataJSON,
		&item.CreatedAt, &item.UpdatedAt, &item.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	if depsJSON != nil {
		_ = json.Unmarshal(depsJSON, &item.Dependencies)
	}
	if checklistsJSON != nil {
		_ = json.Unmarshal(checklistsJSON, &item.Checklists)
	}
	if metadataJSON != nil {
		_ = json.Unmarshal(metadataJSON, &item.Metadata)
	}
	return item, nil
}

func scanHandoff(row pgx.Row) (*Handoff, error) {
	h := &Handoff{}
	var sectionsJSON, issuesJSON []byte
	err := row.Scan(
		&h.ID, &h.ItemID, &h.FromPhase, &h.ToPhase, &h.Status,
		&sectionsJSON, &h.Score, &issuesJSON, &h.CreatedAt, &h.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}
	if sectionsJSON != nil {
		_ = json.Unmarshal(sectionsJSON, &h.Sections)
	}
	if issuesJSON != nil {
		_ = json.Unmarshal(issuesJSON, &h.Issues)
	}
	return h, nil
}

func scanGateResult(row pgx.Row) (*GateResult, error) {
	r := &GateResult{}
	var rulesJSON []byte
	err := row.Scan(
		&r.ID, &r.GateID, &r.ItemID, &r.Score, &r.Verdict, &rulesJSON, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rulesJSON != nil {
		_ = json.Unmarshal(rulesJSON, &r.Rules)
	}
	return r, nil
}
