package houses

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/shared"
)

// Repository provides PostgreSQL backed persistence for houses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const houseColumns = `id, name, address, description, arrival_notes, wifi_name, wifi_password, house_rules, hide_finances, created_by, created_at, updated_at`

// Create inserts a new house.
func (r *Repository) Create(ctx context.Context, house *House) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO houses (id, name, address, description, arrival_notes, wifi_name, wifi_password, house_rules, hide_finances, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`,
		house.ID, house.Name, house.Address, house.Description, house.ArrivalNotes,
		house.WifiName, house.WifiPassword, house.HouseRules, house.HideFinances, house.CreatedBy,
	)
	return err
}

// GetByID fetches a house.
func (r *Repository) GetByID(ctx context.Context, id string) (*House, error) {
	return scanHouse(r.pool.QueryRow(ctx, `SELECT `+houseColumns+` FROM houses WHERE id = $1`, id))
}

// ListByIDs returns the houses with the given ids, name order.
func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]House, error) {
	if len(ids) == 0 {
		return []House{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+houseColumns+` FROM houses WHERE id = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	return collectHouses(rows)
}

// ListAll returns every house, name order.
func (r *Repository) ListAll(ctx context.Context) ([]House, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+houseColumns+` FROM houses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectHouses(rows)
}

// Update persists editable settings.
func (r *Repository) Update(ctx context.Context, house *House) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE houses
		SET name = $2, address = $3, description = $4, arrival_notes = $5,
		    wifi_name = $6, wifi_password = $7, house_rules = $8, hide_finances = $9,
		    updated_at = now()
		WHERE id = $1`,
		house.ID, house.Name, house.Address, house.Description, house.ArrivalNotes,
		house.WifiName, house.WifiPassword, house.HouseRules, house.HideFinances,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a house. Bookings, expenses and tasks cascade in the
// schema.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM houses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count returns the number of houses.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM houses`).Scan(&count)
	return count, err
}

// ListMembers returns the users holding a role in the house, joined with
// profile data. The role map is read straight from the user_roles document.
func (r *Repository) ListMembers(ctx context.Context, houseID string) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id,
		       ur.email,
		       coalesce(u.name, ''),
		       ur.house_roles->$1->>'role',
		       coalesce((ur.house_roles->$1->>'granted_at')::timestamptz, ur.updated_at),
		       coalesce(ur.house_roles->$1->>'granted_by', '')
		FROM user_roles ur
		LEFT JOIN users u ON u.id = ur.user_id
		WHERE ur.house_roles ? $1
		ORDER BY ur.email`,
		houseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var member Member
		var rawRole string
		if err := rows.Scan(&member.UserID, &member.Email, &member.Name, &rawRole, &member.GrantedAt, &member.GrantedBy); err != nil {
			return nil, err
		}
		role, err := perm.ParseHouseRole(rawRole)
		if err != nil {
			return nil, err
		}
		member.Role = role
		members = append(members, member)
	}
	return members, rows.Err()
}

func collectHouses(rows pgx.Rows) ([]House, error) {
	defer rows.Close()
	var result []House
	for rows.Next() {
		house, err := scanHouseRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *house)
	}
	return result, rows.Err()
}

func scanHouse(row pgx.Row) (*House, error) {
	house, err := scanHouseRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return house, nil
}

func scanHouseRow(row pgx.Row) (*House, error) {
	var house House
	err := row.Scan(&house.ID, &house.Name, &house.Address, &house.Description,
		&house.ArrivalNotes, &house.WifiName, &house.WifiPassword, &house.HouseRules,
		&house.HideFinances, &house.CreatedBy, &house.CreatedAt, &house.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &house, nil
}
