package repositories

import (
	"time"

	"kazi/database"
	"kazi/models"
)

func (s *RepositorySuite) TestDashboardRolesAndProjections() {
	x, err := database.SQLX(s.db, "sqlite")
	s.Require().NoError(err)
	dash := NewDashboardRepository(x)

	posted := s.createTask("Posted by owner")

	applied := &models.Task{Title: "Other posts", Budget: posted.Budget, Category: "tech",
		Status: models.TaskStatusOpen, PaymentStatus: models.PaymentStatusUnpaid, PostedByID: s.other.ID}
	s.Require().NoError(s.tasks.Create(s.ctx, applied))
	s.apply(applied.ID, s.worker.ID)

	working := &models.Task{Title: "Worker assigned", Budget: posted.Budget, Category: "tech",
		Status: models.TaskStatusOpen, PaymentStatus: models.PaymentStatusUnpaid, PostedByID: s.other.ID}
	s.Require().NoError(s.tasks.Create(s.ctx, working))
	s.apply(working.ID, s.worker.ID)
	s.Require().NoError(s.tasks.Assign(s.ctx, working.ID, models.TaskStatusOpen, nil, s.worker.ID))

	done := &models.Task{Title: "Worker finished", Budget: posted.Budget, Category: "tech",
		Status: models.TaskStatusOpen, PaymentStatus: models.PaymentStatusUnpaid, PostedByID: s.other.ID}
	s.Require().NoError(s.tasks.Create(s.ctx, done))
	s.apply(done.ID, s.worker.ID)
	s.Require().NoError(s.tasks.Assign(s.ctx, done.ID, models.TaskStatusOpen, nil, s.worker.ID))
	s.Require().NoError(s.tasks.Complete(s.ctx, done.ID, s.worker.ID, time.Now()))

	all, err := dash.List(s.ctx, DashboardQuery{UserID: s.worker.ID})
	s.Require().NoError(err)
	s.Len(all, 3)
	roles := map[uint]string{}
	for _, row := range all {
		roles[row.ID] = row.Role
	}
	s.Equal(RoleApplicant, roles[applied.ID])
	s.Equal(RoleWorker, roles[working.ID])
	s.Equal(RoleWorker, roles[done.ID])

	inProgress, err := dash.List(s.ctx, DashboardQuery{UserID: s.worker.ID, Roles: []string{RoleWorker}, Statuses: []string{models.TaskStatusInProgress}})
	s.Require().NoError(err)
	s.Require().Len(inProgress, 1)
	s.Equal(working.ID, inProgress[0].ID)

	finished, err := dash.List(s.ctx, DashboardQuery{UserID: s.worker.ID, Roles: []string{RoleWorker},
		Statuses: []string{models.TaskStatusCompleted, models.TaskStatusPaid}})
	s.Require().NoError(err)
	s.Require().Len(finished, 1)
	s.Equal(done.ID, finished[0].ID)
	s.NotNil(finished[0].CompletedAt)
	s.True(finished[0].Budget.Equal(posted.Budget))

	mine, err := dash.List(s.ctx, DashboardQuery{UserID: s.owner.ID, Roles: []string{RoleOwner}})
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(posted.ID, mine[0].ID)
	s.Equal(RoleOwner, mine[0].Role)

	none, err := dash.List(s.ctx, DashboardQuery{UserID: s.owner.ID, Roles: []string{RoleApplicant}})
	s.Require().NoError(err)
	s.Empty(none)
}
