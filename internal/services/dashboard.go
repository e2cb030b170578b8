package services

import (
	"context"

	"dormsync-backend-go/internal/models"

	"golang.org/x/sync/errgroup"
)

type AdminDashboard struct {
	TotalStudents       int                   `json:"totalStudents"`
	PendingApprovals    int                   `json:"pendingApprovals"`
	OverduePayments     int                   `json:"overduePayments"`
	PendingTasks        int                   `json:"pendingTasks"`
	RecentAnnouncements []models.Announcement `json:"recentAnnouncements"`
	Host                HostSample            `json:"host"`
}

type StudentDashboard struct {
	Balance             float64       `json:"balance"`
	UnreadNotifications int           `json:"unreadNotifications"`
	UpcomingTasks       []models.Task `json:"upcomingTasks"`
	RoomNumber          string        `json:"roomNumber,omitempty"`
}

type DashboardService struct {
	accounts      AccountStore
	payments      PaymentStore
	tasks         *TaskService
	announcements AnnouncementStore
	notifications NotificationStore
	diskPath      string
}

func NewDashboardService(accounts AccountStore, payments PaymentStore, tasks *TaskService, announcements AnnouncementStore, notifications NotificationStore, diskPath string) *DashboardService {
	return &DashboardService{
		accounts:      accounts,
		payments:      payments,
		tasks:         tasks,
		announcements: announcements,
		notifications: notifications,
		diskPath:      diskPath,
	}
}

func (s *DashboardService) Admin(ctx context.Context) (AdminDashboard, error) {
	var out AdminDashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.accounts.CountAccounts(gctx, AccountFilter{Role: models.RoleStudent})
		out.TotalStudents = n
		return WrapError(err, "count students")
	})
	g.Go(func() error {
		n, err := s.accounts.CountAccounts(gctx, AccountFilter{Status: models.StatusPending})
		out.PendingApprovals = n
		return WrapError(err, "count pending accounts")
	})
	g.Go(func() error {
		n, err := s.payments.CountPayments(gctx, PaymentFilter{Status: models.PaymentOverdue})
		out.OverduePayments = n
		return WrapError(err, "count overdue payments")
	})
	g.Go(func() error {
		n, err := s.tasks.CountPending(gctx)
		out.PendingTasks = n
		return err
	})
	g.Go(func() error {
		items, err := s.announcements.ListAnnouncements(gctx, 3)
		out.RecentAnnouncements = items
		return WrapError(err, "recent announcements")
	})
	g.Go(func() error {
		out.Host = CaptureHostSample(s.diskPath)
		return nil
	})
	if err := g.Wait(); err != nil {
		return AdminDashboard{}, err
	}
	if out.RecentAnnouncements == nil {
		out.RecentAnnouncements = []models.Announcement{}
	}
	return out, nil
}

func (s *DashboardService) Student(ctx context.Context, principal Principal) (StudentDashboard, error) {
	account, err := s.accounts.FindAccountByID(ctx, principal.ID)
	if err != nil {
		return StudentDashboard{}, WrapError(err, "find student")
	}
	out := StudentDashboard{RoomNumber: account.RoomNumber()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balance, err := s.payments.SumOutstanding(gctx, principal.ID)
		out.Balance = balance
		return WrapError(err, "outstanding balance")
	})
	g.Go(func() error {
		n, err := s.notifications.CountUnread(gctx, principal.ID)
		out.UnreadNotifications = n
		return WrapError(err, "count unread")
	})
	g.Go(func() error {
		items, err := s.tasks.Upcoming(gctx, out.RoomNumber, 5)
		out.UpcomingTasks = items
		return err
	})
	if err := g.Wait(); err != nil {
		return StudentDashboard{}, err
	}
	if out.UpcomingTasks == nil {
		out.UpcomingTasks = []models.Task{}
	}
	return out, nil
}
