// README: Address store interface and its PostgreSQL implementation.
package address

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laoyou/internal/types"
)

// Store is the persistence boundary for saved addresses and curated
// destinations. ClearDefault/SetDefault must be atomic per user so that at
// most one address holds the default flag.
type Store interface {
	Insert(ctx context.Context, a *CommonAddress) error
	Get(ctx context.Context, id types.ID) (*CommonAddress, error)
	ListByUser(ctx context.Context, userID types.ID) ([]CommonAddress, error)
	// SetDefault marks id as the user's default and clears any previous
	// default in the same atomic step. Returns ErrNotFound/ErrForbidden.
	SetDefault(ctx context.Context, userID, id types.ID, now time.Time) error
	// TouchLastUsed bumps the last-used timestamp; best effort.
	TouchLastUsed(ctx context.Context, id types.ID, now time.Time) error

	GetQuickDestination(ctx context.Context, id types.ID) (*QuickDestination, error)
	// TouchFavorite bumps the user-scoped favorite marker if the user has
	// favorited the destination; a no-op otherwise. Best effort.
	TouchFavorite(ctx context.Context, userID, destID types.ID, now time.Time) error
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, a *CommonAddress) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO common_addresses (
			id, user_id, lat, lng, address, province, city, district, detail,
			display_name, tag, priority, is_default, building_info, note,
			created_at, updated_at, last_used_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18
		)`,
		string(a.ID), string(a.UserID),
		a.Location.Lat, a.Location.Lng, a.Location.Address,
		a.Location.Province, a.Location.City, a.Location.District, a.Location.Detail,
		a.DisplayName, string(a.Tag), a.Priority, a.IsDefault, a.BuildingInfo, a.Note,
		a.CreatedAt, a.UpdatedAt, a.LastUsedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*CommonAddress, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, lat, lng, address, province, city, district, detail,
		       display_name, tag, priority, is_default, building_info, note,
		       created_at, updated_at, last_used_at
		FROM common_addresses
		WHERE id = $1`, string(id),
	)
	return scanAddress(row)
}

func (s *PGStore) ListByUser(ctx context.Context, userID types.ID) ([]CommonAddress, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, lat, lng, address, province, city, district, detail,
		       display_name, tag, priority, is_default, building_info, note,
		       created_at, updated_at, last_used_at
		FROM common_addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, priority ASC, last_used_at DESC`, string(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommonAddress
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PGStore) SetDefault(ctx context.Context, userID, id types.ID, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var owner string
	err = tx.QueryRow(ctx, `SELECT user_id FROM common_addresses WHERE id = $1`, string(id)).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != string(userID) {
		return ErrForbidden
	}

	if _, err := tx.Exec(ctx, `
		UPDATE common_addresses SET is_default = FALSE, updated_at = $2
		WHERE user_id = $1 AND is_default = TRUE`, string(userID), now); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE common_addresses SET is_default = TRUE, updated_at = $2
		WHERE id = $1`, string(id), now); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) TouchLastUsed(ctx context.Context, id types.ID, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE common_addresses SET last_used_at = $2, updated_at = $2
		WHERE id = $1`, string(id), now)
	return err
}

func (s *PGStore) GetQuickDestination(ctx context.Context, id types.ID) (*QuickDestination, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, lat, lng, address, province, city, district, detail
		FROM quick_destinations
		WHERE id = $1`, string(id),
	)
	var d QuickDestination
	err := row.Scan(&d.ID, &d.Name,
		&d.Location.Lat, &d.Location.Lng, &d.Location.Address,
		&d.Location.Province, &d.Location.City, &d.Location.District, &d.Location.Detail,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PGStore) TouchFavorite(ctx context.Context, userID, destID types.ID, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE quick_destination_favorites SET last_used_at = $3
		WHERE user_id = $1 AND dest_id = $2`, string(userID), string(destID), now)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(row rowScanner) (*CommonAddress, error) {
	var a CommonAddress
	err := row.Scan(
		&a.ID, &a.UserID,
		&a.Location.Lat, &a.Location.Lng, &a.Location.Address,
		&a.Location.Province, &a.Location.City, &a.Location.District, &a.Location.Detail,
		&a.DisplayName, &a.Tag, &a.Priority, &a.IsDefault, &a.BuildingInfo, &a.Note,
		&a.CreatedAt, &a.UpdatedAt, &a.LastUsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
