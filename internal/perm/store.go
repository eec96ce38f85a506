package perm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store loads role data for resolution. Implementations are read-only; all
// mutation goes through Granter so the read path can never fail open into
// an allow.
type Store interface {
	RoleData(ctx context.Context, userID string) (RoleData, error)
}

// Granter performs administrative role mutations. It is deliberately a
// separate contract from Store: request-path code gets a Store and cannot
// reach the write operations.
type Granter interface {
	GrantHouseRole(ctx context.Context, userID, email, houseID string, role HouseRole, grantedBy string) error
	RevokeHouseRole(ctx context.Context, userID, houseID string) error
	RevokeHouseFromAll(ctx context.Context, houseID string) ([]string, error)
	SetSystemRole(ctx context.Context, userID, email string, role SystemRole) error
}

// PGStore reads and writes user_roles records in Postgres. The house role
// map is stored as a JSONB document keyed by house id so concurrent grants
// for different houses merge instead of clobbering each other.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var (
	_ Store   = (*PGStore)(nil)
	_ Granter = (*PGStore)(nil)
)

// RoleData fetches the stripped role record for userID. A missing record is
// the default-deny state, not an error. Any store failure or unparseable
// stored role comes back wrapping ErrRoleFetchFailed.
func (s *PGStore) RoleData(ctx context.Context, userID string) (RoleData, error) {
	if userID == "" {
		return RoleData{}, fmt.Errorf("%w: empty user id", ErrRoleFetchFailed)
	}

	var (
		rawSystemRole string
		rawHouseRoles []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT system_role, house_roles FROM user_roles WHERE user_id = $1`,
		userID,
	).Scan(&rawSystemRole, &rawHouseRoles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultRoleData(), nil
		}
		return RoleData{}, fmt.Errorf("%w: query user_roles: %v", ErrRoleFetchFailed, err)
	}

	systemRole, err := ParseSystemRole(rawSystemRole)
	if err != nil {
		return RoleData{}, fmt.Errorf("user %s: %w", userID, err)
	}

	grants := map[string]RoleGrant{}
	if len(rawHouseRoles) > 0 {
		if err := json.Unmarshal(rawHouseRoles, &grants); err != nil {
			return RoleData{}, fmt.Errorf("%w: decode house_roles for user %s: %v", ErrRoleFetchFailed, userID, err)
		}
	}

	data := RoleData{SystemRole: systemRole, HouseRoles: make(map[string]HouseRole, len(grants))}
	for houseID, grant := range grants {
		role, err := ParseHouseRole(string(grant.Role))
		if err != nil {
			return RoleData{}, fmt.Errorf("user %s house %s: %w", userID, houseID, err)
		}
		data.HouseRoles[houseID] = role
	}
	return data, nil
}

// GrantHouseRole upserts the role record and merges the grant under the
// house key. Last writer wins per (user, house); grants for other houses
// are untouched.
func (s *PGStore) GrantHouseRole(ctx context.Context, userID, email, houseID string, role HouseRole, grantedBy string) error {
	if _, err := ParseHouseRole(string(role)); err != nil {
		return err
	}
	grant, err := json.Marshal(RoleGrant{Role: role, GrantedAt: time.Now().UTC(), GrantedBy: grantedBy})
	if err != nil {
		return fmt.Errorf("perm: encode grant: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, email, system_role, house_roles, created_at, updated_at)
		VALUES ($1, $2, $3, jsonb_build_object($4::text, $5::jsonb), now(), now())
		ON CONFLICT (user_id) DO UPDATE
		SET house_roles = user_roles.house_roles || excluded.house_roles,
		    updated_at  = now()`,
		userID, email, string(SystemRoleRegularUser), houseID, grant,
	)
	if err != nil {
		return fmt.Errorf("perm: grant house role: %w", err)
	}
	return nil
}

// RevokeHouseRole removes the house entry from the role map. Revoking a
// grant that does not exist is a no-op.
func (s *PGStore) RevokeHouseRole(ctx context.Context, userID, houseID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE user_roles
		SET house_roles = house_roles - $2, updated_at = now()
		WHERE user_id = $1`,
		userID, houseID,
	)
	if err != nil {
		return fmt.Errorf("perm: revoke house role: %w", err)
	}
	return nil
}

// RevokeHouseFromAll removes the house entry from every role record that
// has one, returning the affected user ids so their cache entries can be
// invalidated. Used when a house is deleted.
func (s *PGStore) RevokeHouseFromAll(ctx context.Context, houseID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE user_roles
		SET house_roles = house_roles - $1, updated_at = now()
		WHERE house_roles ? $1
		RETURNING user_id`,
		houseID,
	)
	if err != nil {
		return nil, fmt.Errorf("perm: revoke house from all: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("perm: revoke house from all: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

// SetSystemRole upserts the record with a new system role, preserving any
// existing house roles.
func (s *PGStore) SetSystemRole(ctx context.Context, userID, email string, role SystemRole) error {
	if _, err := ParseSystemRole(string(role)); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, email, system_role, house_roles, created_at, updated_at)
		VALUES ($1, $2, $3, '{}'::jsonb, now(), now())
		ON CONFLICT (user_id) DO UPDATE
		SET system_role = excluded.system_role, updated_at = now()`,
		userID, email, string(role),
	)
	if err != nil {
		return fmt.Errorf("perm: set system role: %w", err)
	}
	return nil
}
