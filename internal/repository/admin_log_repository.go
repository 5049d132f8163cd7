package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/club-membership/internal/database"
	"github.com/iliyamo/club-membership/internal/model"
)

// AdminLogRepo appends and lists admin_action_logs.  Rows are never
// updated or deleted.
type AdminLogRepo struct {
	q Querier
	d database.Dialect
}

func NewAdminLogRepo(q Querier, d database.Dialect) *AdminLogRepo {
	return &AdminLogRepo{q: q, d: d}
}

func (r *AdminLogRepo) WithTx(tx *sql.Tx) *AdminLogRepo { return &AdminLogRepo{q: tx, d: r.d} }

// Insert appends one log row.  It must run in the transaction of the
// change it records.
func (r *AdminLogRepo) Insert(ctx context.Context, l *model.AdminActionLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = now()
	_, err := r.q.ExecContext(ctx, r.d.Rebind(
		`INSERT INTO admin_action_logs (id,actor_id,target_user_id,action,before_role,after_role,created_at)
		 VALUES (?,?,?,?,?,?,?)`),
		l.ID, l.ActorID, l.TargetUserID, string(l.Action), l.BeforeRole, l.AfterRole, l.CreatedAt)
	return err
}

// ListRecent returns up to limit entries, newest first, with the actor
// and the (nullable) target joined in.
func (r *AdminLogRepo) ListRecent(ctx context.Context, limit int) ([]model.AdminLogEntry, error) {
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(`
		SELECT l.id, l.actor_id, l.target_user_id, l.action, l.before_role, l.after_role, l.created_at,
		       a.id, a.email, a.name, a.role,
		       t.id, t.email, t.name, t.role
		FROM admin_action_logs l
		JOIN users a ON a.id = l.actor_id
		LEFT JOIN users t ON t.id = l.target_user_id
		ORDER BY l.created_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AdminLogEntry{}
	for rows.Next() {
		var (
			e                         model.AdminLogEntry
			target, before, after     sql.NullString
			action, actorRole         string
			tID, tEmail, tName, tRole sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &target, &action, &before, &after, &e.CreatedAt,
			&e.Actor.ID, &e.Actor.Email, &e.Actor.Name, &actorRole,
			&tID, &tEmail, &tName, &tRole); err != nil {
			return nil, err
		}
		e.Action = model.AdminAction(action)
		e.TargetUserID = nullString(target)
		e.BeforeRole = nullString(before)
		e.AfterRole = nullString(after)
		e.CreatedAt = e.CreatedAt.UTC()
		e.Actor.Role = model.Role(actorRole)
		if tID.Valid {
			e.Target = &model.LogUser{ID: tID.String, Email: tEmail.String, Name: tName.String, Role: model.Role(tRole.String)}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
