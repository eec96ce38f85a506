package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/cohaus/cohaus/internal/jobs"
	"github.com/cohaus/cohaus/internal/perm"
)

// RoleIntegrityScanJob walks the role records and reports any that would
// fail to parse at request time. A record flagged here means its user is
// locked out (the resolver fails closed), so the weekly sweep surfaces
// the problem before support tickets do. The scan never mutates data.
type RoleIntegrityScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRoleIntegrityScanJob constructs the scan handler.
func NewRoleIntegrityScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *RoleIntegrityScanJob {
	return &RoleIntegrityScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *RoleIntegrityScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("role scan: handler not configured")
	}
	tracker := j.Metrics.Track(TaskTypeRoleIntegrityScan)

	rows, err := j.Pool.Query(ctx,
		`SELECT user_id, system_role, house_roles FROM user_roles ORDER BY user_id`)
	if err != nil {
		return tracker.End(err)
	}
	defer rows.Close()

	scanned, invalid := 0, 0
	for rows.Next() {
		var (
			userID        string
			rawSystemRole string
			rawHouseRoles []byte
		)
		if err := rows.Scan(&userID, &rawSystemRole, &rawHouseRoles); err != nil {
			return tracker.End(err)
		}
		scanned++

		if _, err := perm.ParseSystemRole(rawSystemRole); err != nil {
			invalid++
			j.log(userID, "system_role", rawSystemRole)
			continue
		}
		var grants map[string]perm.RoleGrant
		if len(rawHouseRoles) > 0 {
			if err := json.Unmarshal(rawHouseRoles, &grants); err != nil {
				invalid++
				j.log(userID, "house_roles", string(rawHouseRoles))
				continue
			}
		}
		for houseID, grant := range grants {
			if _, err := perm.ParseHouseRole(string(grant.Role)); err != nil {
				invalid++
				j.log(userID, "house_roles."+houseID, string(grant.Role))
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return tracker.End(err)
	}

	if j.Logger != nil {
		j.Logger.Info("role integrity scan finished",
			slog.Int("scanned", scanned),
			slog.Int("invalid", invalid))
	}
	return tracker.End(nil)
}

func (j *RoleIntegrityScanJob) log(userID, field, value string) {
	if j.Logger == nil {
		return
	}
	j.Logger.Warn("invalid role record",
		slog.String("user_id", userID),
		slog.String("field", field),
		slog.String("value", value))
}
