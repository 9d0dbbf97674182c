// Package filters is the relational repository for user-defined quick
// filters: named filter-settings blobs scoped to a username.
package filters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no quick filter exists for an id.
	ErrNotFound = errors.New("filters: not found")

	// ErrDuplicate is returned when a user already has a filter by that name.
	ErrDuplicate = errors.New("filters: duplicate filter name")

	// ErrNoFields is returned when a partial update supplies nothing to set.
	ErrNoFields = errors.New("filters: no fields to update")
)

// QuickFilter is one stored quick filter.
type QuickFilter struct {
	ID             int64           `json:"id"`
	Username       string          `json:"username"`
	FilterName     string          `json:"filterName"`
	FilterSettings json.RawMessage `json:"filterSettings"`
}

// UpdateParams carries the fields of a partial update; nil fields are left
// unchanged.
type UpdateParams struct {
	FilterName     *string
	FilterSettings json.RawMessage
}

// DB is the database surface the repository needs. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repo provides CRUD access to quick filters.
type Repo struct {
	db DB
}

// NewRepo creates a Repo on db.
func NewRepo(db DB) *Repo {
	return &Repo{db: db}
}

const selectColumns = `id, username, filter_name, filter_settings`

// Add stores a new quick filter. Returns ErrDuplicate when the user
// already has a filter with the same name.
func (r *Repo) Add(ctx context.Context, username, filterName string, settings json.RawMessage) (*QuickFilter, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM quick_filters
		   WHERE username = $1 AND filter_name = $2
		 )`,
		username, filterName,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate filter: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, filterName)
	}

	var f QuickFilter
	err = r.db.QueryRow(ctx,
		`INSERT INTO quick_filters (username, filter_name, filter_settings)
		 VALUES ($1, $2, $3)
		 RETURNING `+selectColumns,
		username, filterName, settings,
	).Scan(&f.ID, &f.Username, &f.FilterName, &f.FilterSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to insert quick filter: %w", err)
	}
	return &f, nil
}

// List returns all quick filters, ordered by id.
func (r *Repo) List(ctx context.Context) ([]QuickFilter, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM quick_filters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quick filters: %w", err)
	}
	defer rows.Close()
	return scanFilters(rows)
}

// ListForUser returns a user's quick filters, ordered by name.
func (r *Repo) ListForUser(ctx context.Context, username string) ([]QuickFilter, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM quick_filters
		 WHERE username = $1 ORDER BY filter_name`,
		username)
	if err != nil {
		return nil, fmt.Errorf("failed to list quick filters for %s: %w", username, err)
	}
	defer rows.Close()
	return scanFilters(rows)
}

// Get returns one quick filter by id, or ErrNotFound.
func (r *Repo) Get(ctx context.Context, id int64) (*QuickFilter, error) {
	var f QuickFilter
	err := r.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM quick_filters WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.Username, &f.FilterName, &f.FilterSettings)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quick filter %d: %w", id, err)
	}
	return &f, nil
}

// Update applies a partial update to a quick filter: only the fields set
// in params change, the id never does. Returns ErrNotFound when the id
// does not exist.
func (r *Repo) Update(ctx context.Context, id int64, params UpdateParams) (*QuickFilter, error) {
	query, args, err := buildUpdate(id, params)
	if err != nil {
		return nil, err
	}

	var f QuickFilter
	err = r.db.QueryRow(ctx, query, args...).
		Scan(&f.ID, &f.Username, &f.FilterName, &f.FilterSettings)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update quick filter %d: %w", id, err)
	}
	return &f, nil
}

// Remove deletes a quick filter by id. Returns ErrNotFound when absent.
func (r *Repo) Remove(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quick_filters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quick filter %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// buildUpdate assembles the parameterized partial-update statement from the
// provided fields.
func buildUpdate(id int64, params UpdateParams) (string, []any, error) {
	var (
		sets []string
		args []any
	)

	if params.FilterName != nil {
		args = append(args, *params.FilterName)
		sets = append(sets, fmt.Sprintf("filter_name = $%d", len(args)))
	}
	if params.FilterSettings != nil {
		args = append(args, params.FilterSettings)
		sets = append(sets, fmt.Sprintf("filter_settings = $%d", len(args)))
	}
	if len(sets) == 0 {
		return "", nil, ErrNoFields
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE quick_filters SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), selectColumns)
	return query, args, nil
}

func scanFilters(rows pgx.Rows) ([]QuickFilter, error) {
	var out []QuickFilter
	for rows.Next() {
		var f QuickFilter
		if err := rows.Scan(&f.ID, &f.Username, &f.FilterName, &f.FilterSettings); err != nil {
			return nil, fmt.Errorf("failed to scan quick filter: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read quick filters: %w", err)
	}
	return out, nil
}
