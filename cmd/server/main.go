package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"dormsync-backend-go/internal/config"
	"dormsync-backend-go/internal/db"
	httpapi "dormsync-backend-go/internal/http"
	"dormsync-backend-go/internal/migrations"
	"dormsync-backend-go/internal/services"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	cleanupLogs, err := setupLogger(cfg.LogDir, cfg.LogRetentionDays)
	if err != nil {
		log.Printf("logger setup failed: %v", err)
	} else {
		defer cleanupLogs()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()
	if err := migrations.Apply(ctx, database, migrations.Files()); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	store := db.NewStore(database)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable, continuing: %v", err)
		}
	}

	audit := services.NewAuditRecorder(store)
	hub := services.NewNotificationHub()
	go hub.Run(ctx)
	notifications := services.NewNotificationService(store, hub)
	media := services.NewMediaStore(store, cfg.MediaStoragePath)

	tokens := services.TokenService{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.TokenTTL,
	}
	accountOpts := []services.AccountOption{
		services.WithMailer(newMailer(cfg)),
		services.WithAdminSignup(cfg.AllowAdminSignup),
		services.WithDefaultStudentPassword(cfg.DefaultStudentPassword),
		services.WithAttemptLimiter(newLimiter(cfg, redisClient)),
		services.WithMediaStore(media),
	}
	if cfg.GoogleClientID != "" {
		verifier := services.NewGoogleVerifier(cfg.GoogleClientID, cfg.GoogleJWKSURL)
		defer verifier.Close()
		accountOpts = append(accountOpts, services.WithIdentityVerifier(verifier))
	}
	accounts := services.NewAccountService(store, store, tokens, audit, accountOpts...)

	tasks := services.NewTaskService(store, store, newCalendar(ctx, cfg, redisClient), audit,
		services.WithTaskNotifier(notifications))

	server := &httpapi.Server{
		Config:        cfg,
		Accounts:      accounts,
		Rooms:         services.NewRoomService(store, store, audit),
		Payments:      services.NewPaymentService(store, store, media, notifications, audit),
		Tasks:         tasks,
		Attendance:    services.NewAttendanceService(store, store, audit),
		Announcements: services.NewAnnouncementService(store, store, notifications, audit),
		Notifications: notifications,
		Dashboard:     services.NewDashboardService(store, store, tasks, store, store, cfg.MetricsDiskPath),
		Audit:         audit,
		Media:         media,
		Hub:           hub,
	}

	exporter := services.NewBackupExporter(store, cfg.BackupDir, services.WithBackupRetention(cfg.BackupRetention))
	scheduler, err := exporter.Schedule(ctx, cfg.BackupSchedule)
	if err != nil {
		log.Fatalf("backup schedule: %v", err)
	}

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	<-scheduler.Stop().Done()
	if err := audit.Close(ctxShutdown); err != nil {
		log.Printf("audit drain: %v", err)
	}
	log.Printf("shutdown complete")
}

func newMailer(cfg config.Config) services.Mailer {
	if !cfg.SMTPEnabled() {
		log.Printf("SMTP not configured, emails will only be logged")
		return services.LogMailer{}
	}
	return services.NewSMTPMailer(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}

func newLimiter(cfg config.Config, client *redis.Client) services.AttemptLimiter {
	if client != nil {
		return services.NewRedisLimiter(client, cfg.LoginAttemptLimit, cfg.LoginAttemptWindow)
	}
	return services.NewMemoryLimiter(cfg.LoginAttemptLimit, cfg.LoginAttemptWindow)
}

func newCalendar(ctx context.Context, cfg config.Config, client *redis.Client) services.Calendar {
	if !cfg.CalendarEnabled() {
		return services.NoopCalendar{}
	}
	google, err := services.NewGoogleCalendar(ctx, cfg.GoogleCalendarCredentials, cfg.GoogleCalendarID, cfg.GoogleHolidayCalendarID)
	if err != nil {
		log.Printf("calendar disabled: %v", err)
		return services.NoopCalendar{}
	}
	if client != nil {
		return services.NewCachedCalendar(google, client)
	}
	return google
}

// setupLogger tees the standard logger into a daily app-YYYY-MM-DD.log file
// and keeps at most seven days of files.
func setupLogger(logDir string, retentionDays int) (func(), error) {
	if retentionDays <= 0 || retentionDays > 7 {
		retentionDays = 7
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	currentDate := time.Now().Format("2006-01-02")
	file, err := openLogFile(logDir, currentDate)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	cleanupOldLogs(logDir, retentionDays)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				date := time.Now().Format("2006-01-02")
				mu.Lock()
				if date != currentDate {
					newFile, err := openLogFile(logDir, date)
					if err == nil {
						log.SetOutput(io.MultiWriter(os.Stdout, newFile))
						_ = file.Close()
						file = newFile
						currentDate = date
						cleanupOldLogs(logDir, retentionDays)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		mu.Lock()
		_ = file.Close()
		mu.Unlock()
	}, nil
}

func openLogFile(logDir, date string) (*os.File, error) {
	filename := filepath.Join(logDir, fmt.Sprintf("app-%s.log", date))
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func cleanupOldLogs(logDir string, retentionDays int) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -(retentionDays - 1))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		datePart := strings.TrimSuffix(strings.TrimPrefix(name, "app-"), ".log")
		logDate, err := time.Parse("2006-01-02", datePart)
		if err != nil {
			continue
		}
		if logDate.Before(cutoff) {
			_ = os.Remove(filepath.Join(logDir, name))
		}
	}
}
