package services

import (
	"context"

	"kazi/apperrors"
	"kazi/models"
	"kazi/repositories"
)

// DashboardView names a fixed projection of the per-user task view.
type DashboardView string

const (
	ViewMyTasks   DashboardView = "my-tasks"
	ViewApplied   DashboardView = "applied"
	ViewAssigned  DashboardView = "assigned"
	ViewCompleted DashboardView = "completed"
)

var dashboardViews = map[DashboardView]repositories.DashboardQuery{
	ViewMyTasks: {Roles: []string{repositories.RoleOwner}},
	ViewApplied: {Roles: []string{repositories.RoleApplicant, repositories.RoleWorker}},
	ViewAssigned: {
		Roles:    []string{repositories.RoleWorker},
		Statuses: []string{models.TaskStatusInProgress},
	},
	ViewCompleted: {
		Roles:    []string{repositories.RoleWorker},
		Statuses: []string{models.TaskStatusCompleted, models.TaskStatusPaid},
	},
}

// DashboardQuery filters the view directly. Empty fields match everything.
type DashboardQuery struct {
	Role   string
	Status string
}

func (s *TaskService) Dashboard(ctx context.Context, userID uint, q DashboardQuery) ([]repositories.DashboardRow, error) {
	dq := repositories.DashboardQuery{UserID: userID}
	if q.Role != "" {
		switch q.Role {
		case repositories.RoleOwner, repositories.RoleWorker, repositories.RoleApplicant:
			dq.Roles = []string{q.Role}
		default:
			return nil, apperrors.Validation(apperrors.MsgInvalidRoleFilter)
		}
	}
	if q.Status != "" {
		if !models.IsTaskStatus(q.Status) {
			return nil, apperrors.Validation(apperrors.MsgInvalidStatusFilter)
		}
		dq.Statuses = []string{q.Status}
	}
	return s.listDashboard(ctx, dq)
}

func (s *TaskService) View(ctx context.Context, userID uint, view DashboardView) ([]repositories.DashboardRow, error) {
	dq, ok := dashboardViews[view]
	if !ok {
		return nil, apperrors.Validation(apperrors.MsgInvalidRoleFilter)
	}
	dq.UserID = userID
	return s.listDashboard(ctx, dq)
}

func (s *TaskService) listDashboard(ctx context.Context, dq repositories.DashboardQuery) ([]repositories.DashboardRow, error) {
	rows, err := s.dashboard.List(ctx, dq)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return rows, nil
}
