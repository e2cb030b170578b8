package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"dormsync-backend-go/internal/models"
)

var fixedNow = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// memStore is a map backed implementation of every store interface.
type memStore struct {
	mu            sync.Mutex
	accounts      map[string]models.Account
	rooms         map[string]models.Room
	payments      map[string]models.Payment
	tasks         map[string]models.Task
	attendance    map[string]models.AttendanceLog
	announcements []models.Announcement
	notifications []models.Notification
	auditLogs     []models.AuditLogEntry
	media         map[string]models.MediaAsset
	tables        map[string][]map[string]interface{}
	failTable     string
	paymentErr    error
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   map[string]models.Account{},
		rooms:      map[string]models.Room{},
		payments:   map[string]models.Payment{},
		tasks:      map[string]models.Task{},
		attendance: map[string]models.AttendanceLog{},
		media:      map[string]models.MediaAsset{},
		tables:     map[string][]map[string]interface{}{},
	}
}

func cloneAccount(a models.Account) models.Account {
	if a.StudentProfile != nil {
		profile := *a.StudentProfile
		a.StudentProfile = &profile
	}
	return a
}

func (m *memStore) put(a models.Account) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Version == 0 {
		a.Version = 1
	}
	m.accounts[a.ID] = cloneAccount(a)
	return a
}

func (m *memStore) account(id string) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAccount(m.accounts[id])
}

func (m *memStore) FindAccountByID(_ context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return cloneAccount(a), nil
}

func (m *memStore) FindAccountByEmail(_ context.Context, email string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return models.Account{}, sql.ErrNoRows
}

func (m *memStore) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email && a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) StudentIDTaken(_ context.Context, studentID, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.StudentID != nil && *a.StudentID == studentID && a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return models.ErrDuplicateKey
		}
	}
	account.Version = 1
	m.accounts[account.ID] = cloneAccount(*account)
	return nil
}

func (m *memStore) UpdateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[account.ID]
	if !ok || stored.Version != account.Version {
		return models.ErrStaleVersion
	}
	account.Version++
	m.accounts[account.ID] = cloneAccount(*account)
	return nil
}

func (m *memStore) DeleteStudentCascade(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.accounts, id)
	for key, p := range m.payments {
		if p.StudentID == id {
			delete(m.payments, key)
		}
	}
	for key, entry := range m.attendance {
		if entry.StudentID == id {
			delete(m.attendance, key)
		}
	}
	kept := m.notifications[:0]
	for _, n := range m.notifications {
		if n.RecipientID != id {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
	return nil
}

func (m *memStore) matchAccounts(filter AccountFilter) []models.Account {
	out := []models.Account{}
	for _, a := range m.accounts {
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(a.FullName()+" "+a.Email), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (m *memStore) ListAccounts(_ context.Context, filter AccountFilter) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchAccounts(filter), nil
}

func (m *memStore) CountAccounts(_ context.Context, filter AccountFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matchAccounts(filter)), nil
}

func (m *memStore) ListStudentsInRoom(_ context.Context, roomNumber string) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Account{}
	for _, a := range m.matchAccounts(AccountFilter{Role: models.RoleStudent}) {
		if roomNumber == models.AllRooms || a.RoomNumber() == roomNumber {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListRooms(_ context.Context) ([]models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}

func (m *memStore) FindRoom(_ context.Context, id string) (models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return models.Room{}, sql.ErrNoRows
	}
	return r, nil
}

func (m *memStore) CreateRoom(_ context.Context, room models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.RoomNumber == room.RoomNumber {
			return models.ErrDuplicateKey
		}
	}
	m.rooms[room.ID] = room
	return nil
}

func (m *memStore) UpdateRoom(_ context.Context, room models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.RoomNumber == room.RoomNumber && r.ID != room.ID {
			return models.ErrDuplicateKey
		}
	}
	m.rooms[room.ID] = room
	return nil
}

func (m *memStore) DeleteRoom(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

func (m *memStore) CreatePayments(_ context.Context, items []models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range items {
		m.payments[p.ID] = p
	}
	return nil
}

func (m *memStore) FindPayment(_ context.Context, id string) (models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return models.Payment{}, sql.ErrNoRows
	}
	return p, nil
}

func (m *memStore) UpdatePayment(_ context.Context, payment models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paymentErr != nil {
		return m.paymentErr
	}
	if _, ok := m.payments[payment.ID]; !ok {
		return sql.ErrNoRows
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *memStore) DeletePayment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payments, id)
	return nil
}

func (m *memStore) matchPayments(filter PaymentFilter) []models.Payment {
	out := []models.Payment{}
	for _, p := range m.payments {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

func (m *memStore) ListPayments(_ context.Context, filter PaymentFilter) ([]models.PaymentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PaymentView{}
	for _, p := range m.matchPayments(filter) {
		student := m.accounts[p.StudentID]
		out = append(out, models.PaymentView{
			Payment:          p,
			StudentFirstName: student.FirstName,
			StudentLastName:  student.LastName,
			StudentEmail:     student.Email,
			StudentNumber:    student.StudentID,
		})
	}
	return out, nil
}

func (m *memStore) SumOutstanding(_ context.Context, studentID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, p := range m.matchPayments(PaymentFilter{StudentID: studentID}) {
		if p.Status == models.PaymentPending || p.Status == models.PaymentOverdue {
			total += p.Amount
		}
	}
	return total, nil
}

func (m *memStore) CountPayments(_ context.Context, filter PaymentFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matchPayments(filter)), nil
}

func (m *memStore) matchTasks(filter TaskFilter) []models.Task {
	out := []models.Task{}
	for _, t := range m.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.From != nil && t.DueDate.Before(*filter.From) {
			continue
		}
		if len(filter.Rooms) > 0 {
			found := false
			for _, room := range filter.Rooms {
				if room == t.AssignedRoom {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (m *memStore) ListTasks(_ context.Context, filter TaskFilter) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchTasks(filter), nil
}

func (m *memStore) FindTask(_ context.Context, id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return models.Task{}, sql.ErrNoRows
	}
	return t, nil
}

func (m *memStore) CreateTask(_ context.Context, task models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) UpdateTask(_ context.Context, task models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *memStore) CountTasks(_ context.Context, filter TaskFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matchTasks(filter)), nil
}

func (m *memStore) ListAttendance(_ context.Context, filter AttendanceFilter) ([]models.AttendanceLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.AttendanceLog{}
	for _, entry := range m.attendance {
		if filter.StudentID != "" && entry.StudentID != filter.StudentID {
			continue
		}
		if filter.From != nil && entry.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !entry.Date.Before(*filter.To) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memStore) FindAttendance(_ context.Context, id string) (models.AttendanceLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.attendance[id]
	if !ok {
		return models.AttendanceLog{}, sql.ErrNoRows
	}
	return entry, nil
}

func (m *memStore) CreateAttendance(_ context.Context, entry models.AttendanceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attendance[entry.ID] = entry
	return nil
}

func (m *memStore) UpdateAttendance(_ context.Context, entry models.AttendanceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attendance[entry.ID] = entry
	return nil
}

func (m *memStore) ListAnnouncements(_ context.Context, limit int) ([]models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Announcement(nil), m.announcements...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FindAnnouncement(_ context.Context, id string) (models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.announcements {
		if item.ID == id {
			return item, nil
		}
	}
	return models.Announcement{}, sql.ErrNoRows
}

func (m *memStore) CreateAnnouncement(_ context.Context, item models.Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announcements = append(m.announcements, item)
	return nil
}

func (m *memStore) DeleteAnnouncement(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.announcements {
		if item.ID == id {
			m.announcements = append(m.announcements[:i], m.announcements[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) InsertNotifications(_ context.Context, items []models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, items...)
	return nil
}

func (m *memStore) ListNotifications(_ context.Context, recipientID string, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *memStore) FindNotification(_ context.Context, id string) (models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return models.Notification{}, sql.ErrNoRows
}

func (m *memStore) MarkNotificationRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].Read = true
		}
	}
	return nil
}

func (m *memStore) MarkAllNotificationsRead(_ context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i := range m.notifications {
		if m.notifications[i].RecipientID == recipientID && !m.notifications[i].Read {
			m.notifications[i].Read = true
			count++
		}
	}
	return count, nil
}

func (m *memStore) InsertAuditLog(_ context.Context, entry models.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLogs = append(m.auditLogs, entry)
	return nil
}

func (m *memStore) ListAuditLogs(_ context.Context, filter AuditFilter) ([]models.AuditLogEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []models.AuditLogEntry{}
	for _, entry := range m.auditLogs {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.ActorID != "" && (entry.ActorID == nil || *entry.ActorID != filter.ActorID) {
			continue
		}
		matched = append(matched, entry)
	}
	start := (filter.Page - 1) * filter.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (m *memStore) InsertMediaAsset(_ context.Context, asset models.MediaAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[asset.ID] = asset
	return nil
}

func (m *memStore) FindMediaAsset(_ context.Context, id string) (models.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.media[id]
	if !ok {
		return models.MediaAsset{}, sql.ErrNoRows
	}
	return asset, nil
}

func (m *memStore) DeleteMediaAsset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.media, id)
	return nil
}

func (m *memStore) DumpTable(_ context.Context, table string) ([]map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if table == m.failTable {
		return nil, errors.New("relation does not exist")
	}
	return m.tables[table], nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAuditor) Record(_ context.Context, entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAuditor) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Action)
	}
	return out
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type notice struct {
	Recipients []string
	Message    string
	Kind       models.NotificationType
	Related    Related
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (f *fakeNotifier) Notify(_ context.Context, recipients []string, message string, kind models.NotificationType, related Related) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{Recipients: recipients, Message: message, Kind: kind, Related: related})
}

type fakeCalendar struct {
	eventID    string
	createErr  error
	deleteErr  error
	holidays   []Holiday
	holidayErr error

	created   []models.Task
	attendees [][]string
	updated   []string
	deleted   []string
}

func (f *fakeCalendar) CreateEvent(_ context.Context, task models.Task, attendees []string) (string, error) {
	f.created = append(f.created, task)
	f.attendees = append(f.attendees, attendees)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.eventID, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, eventID string, _ models.Task) error {
	f.updated = append(f.updated, eventID)
	return nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return f.deleteErr
}

func (f *fakeCalendar) ListHolidays(context.Context, time.Time) ([]Holiday, error) {
	return f.holidays, f.holidayErr
}

type staticVerifier struct {
	identity Identity
	err      error
}

func (v staticVerifier) Verify(context.Context, string) (Identity, error) {
	return v.identity, v.err
}

func strPtr(value string) *string { return &value }
