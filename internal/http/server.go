package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/config"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	Config        config.Config
	Accounts      *services.AccountService
	Rooms         *services.RoomService
	Payments      *services.PaymentService
	Tasks         *services.TaskService
	Attendance    *services.AttendanceService
	Announcements *services.AnnouncementService
	Notifications *services.NotificationService
	Dashboard     *services.DashboardService
	Audit         *services.AuditRecorder
	Media         *services.MediaStore
	Hub           *services.NotificationHub
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.Config.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	authed := WithAuth(s.Accounts, false)

	r.Route("/api", func(api chi.Router) {
		api.Use(RequestLogger)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", s.Register)
			auth.Post("/verify-otp", s.VerifyOTP)
			auth.Post("/login", s.Login)
			auth.Post("/google", s.GoogleLogin)
			auth.Post("/forgot-password", s.ForgotPassword)
			auth.Post("/verify-reset-otp", s.VerifyResetCode)
			auth.Post("/reset-password", s.ResetPassword)
			auth.Group(func(onboarding chi.Router) {
				onboarding.Use(WithAuth(s.Accounts, true))
				onboarding.Get("/me", s.Me)
				onboarding.Put("/profile", s.UpdateProfile)
				onboarding.Post("/profile/avatar", s.UploadAvatar)
			})
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(authed, RequireAnyRole(services.AccountAdminRoles))
			users.Get("/pending", s.ListPending)
			users.Put("/{id}/approve", s.ApproveUser)
			users.Put("/{id}/reject", s.RejectUser)
			users.Put("/{id}/role", s.UpdateRole)
			users.Get("/staff", s.ListStaff)
			users.Post("/staff", s.CreateStaff)
		})

		api.Route("/students", func(students chi.Router) {
			students.Use(authed, RequireAnyRole(services.ResidentAdminRoles))
			students.Get("/", s.ListStudents)
			students.Post("/", s.CreateStudent)
			students.Get("/{id}", s.GetStudent)
			students.Put("/{id}", s.UpdateStudent)
			students.Delete("/{id}", s.DeleteStudent)
		})

		api.Route("/payments", func(payments chi.Router) {
			payments.Use(authed)
			payments.With(RequireAnyRole(services.StudentRoles)).Get("/my-history", s.MyPayments)
			payments.With(RequireAnyRole(services.PaymentEditorRoles)).Put("/{id}", s.UpdatePayment)
			payments.With(RequireAnyRole(services.PaymentEditorRoles)).Patch("/{id}", s.UpdatePayment)
			payments.With(RequireAnyRole(services.PaymentEditorRoles)).Get("/{id}/receipt", s.PaymentReceipt)
			payments.Group(func(admin chi.Router) {
				admin.Use(RequireAnyRole(services.ResidentAdminRoles))
				admin.Get("/", s.ListPayments)
				admin.Post("/", s.CreatePayment)
				admin.Post("/bulk", s.BulkCreatePayments)
				admin.Delete("/{id}", s.DeletePayment)
			})
		})

		api.Route("/tasks", func(tasks chi.Router) {
			tasks.Use(authed)
			tasks.Get("/", s.ListTasks)
			tasks.Group(func(admin chi.Router) {
				admin.Use(RequireAnyRole(services.ResidentAdminRoles))
				admin.Post("/", s.CreateTask)
				admin.Put("/{id}", s.UpdateTask)
				admin.Delete("/{id}", s.DeleteTask)
			})
		})

		api.Route("/attendance", func(attendance chi.Router) {
			attendance.Use(authed)
			attendance.With(RequireAnyRole(services.AttendanceReadRoles)).Get("/", s.ListAttendance)
			attendance.With(RequireAnyRole(services.AttendanceRoles)).Post("/", s.CreateAttendance)
			attendance.With(RequireAnyRole(services.AttendanceRoles)).Put("/{id}", s.UpdateAttendance)
		})

		api.Route("/rooms", func(rooms chi.Router) {
			rooms.Get("/", s.ListRooms)
			rooms.Group(func(admin chi.Router) {
				admin.Use(authed, RequireAnyRole(services.ResidentAdminRoles))
				admin.Get("/{id}", s.GetRoom)
				admin.Post("/", s.CreateRoom)
				admin.Put("/{id}", s.UpdateRoom)
				admin.Delete("/{id}", s.DeleteRoom)
			})
		})

		api.Route("/announcements", func(announcements chi.Router) {
			announcements.Use(authed)
			announcements.Get("/", s.ListAnnouncements)
			announcements.With(RequireAnyRole(services.ResidentAdminRoles)).Post("/", s.CreateAnnouncement)
			announcements.With(RequireAnyRole(services.ResidentAdminRoles)).Delete("/{id}", s.DeleteAnnouncement)
		})

		api.With(authed, RequireAnyRole(services.AdministrativeRoles)).Get("/logs", s.ListLogs)

		api.Route("/notifications", func(notifications chi.Router) {
			notifications.Use(authed)
			notifications.Get("/", s.ListNotifications)
			notifications.Put("/read-all", s.MarkAllNotificationsRead)
			notifications.Put("/{id}/read", s.MarkNotificationRead)
		})

		api.Route("/dashboard", func(dashboard chi.Router) {
			dashboard.Use(authed)
			dashboard.With(RequireAnyRole(services.DashboardAdminRoles)).Get("/admin", s.AdminDashboard)
			dashboard.With(RequireAnyRole(services.StudentRoles)).Get("/student", s.StudentDashboard)
		})

		api.With(authed).Get("/media/assets/{assetId}/content", s.MediaContent)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/notifications", s.NotificationSocket)
	return r
}
