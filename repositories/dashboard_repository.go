package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	RoleOwner     = "owner"
	RoleWorker    = "worker"
	RoleApplicant = "applicant"
)

// DashboardRow is one task as seen by one user. Role is resolved with the
// precedence owner, then worker, then applicant.
type DashboardRow struct {
	ID            uint            `db:"id" json:"id"`
	Title         string          `db:"title" json:"title"`
	Budget        decimal.Decimal `db:"budget" json:"budget"`
	Category      string          `db:"category" json:"category"`
	Status        string          `db:"status" json:"status"`
	PaymentStatus string          `db:"payment_status" json:"payment_status"`
	Deadline      *time.Time      `db:"deadline" json:"deadline,omitempty"`
	PostedByID    uint            `db:"posted_by_id" json:"posted_by"`
	AssignedToID  *uint           `db:"assigned_to_id" json:"assigned_to,omitempty"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	Role          string          `db:"role" json:"role"`
}

type DashboardQuery struct {
	UserID   uint
	Roles    []string
	Statuses []string
}

// DashboardRepository serves the per-user task view straight from SQL.
type DashboardRepository struct {
	db *sqlx.DB
}

func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

const roleExpr = `CASE WHEN t.posted_by_id = ? THEN 'owner' WHEN t.assigned_to_id = ? THEN 'worker' ELSE 'applicant' END`

func (r *DashboardRepository) List(ctx context.Context, q DashboardQuery) ([]DashboardRow, error) {
	var sb strings.Builder
	args := []interface{}{q.UserID, q.UserID}

	sb.WriteString(`SELECT t.id, t.title, t.budget, t.category, t.status, t.payment_status, t.deadline,
	t.posted_by_id, t.assigned_to_id, t.completed_at, t.paid_at, t.created_at, t.updated_at, `)
	sb.WriteString(roleExpr)
	sb.WriteString(` AS role
FROM tasks t
WHERE (t.posted_by_id = ? OR t.assigned_to_id = ?
	OR EXISTS (SELECT 1 FROM task_applicants a WHERE a.task_id = t.id AND a.applicant_id = ?))`)
	args = append(args, q.UserID, q.UserID, q.UserID)

	if len(q.Roles) > 0 {
		sb.WriteString(" AND ")
		sb.WriteString(roleExpr)
		sb.WriteString(" IN (?)")
		args = append(args, q.UserID, q.UserID, q.Roles)
	}
	if len(q.Statuses) > 0 {
		sb.WriteString(" AND t.status IN (?)")
		args = append(args, q.Statuses)
	}
	sb.WriteString(" ORDER BY t.updated_at DESC, t.id DESC")

	query, args, err := sqlx.In(sb.String(), args...)
	if err != nil {
		return nil, err
	}
	rows := []DashboardRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
