package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/pkg/jobs"
	"github.com/noah-isme/edutenant-api/pkg/notify"
)

type memberStub map[string]string

func (m memberStub) ExistsInSchool(ctx context.Context, schoolID, id string) (bool, error) {
	return m[id] == schoolID, nil
}

type messageRepoStub struct {
	messages map[string]*models.Message
	lastList models.MessageFilter
}

func (s *messageRepoStub) List(ctx context.Context, schoolID string, filter models.MessageFilter) ([]models.Message, int, error) {
	s.lastList = filter
	return nil, 0, nil
}

func (s *messageRepoStub) FindByID(ctx context.Context, schoolID, id string) (*models.Message, error) {
	m, ok := s.messages[id]
	if !ok || m.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	clone := *m
	return &clone, nil
}

func (s *messageRepoStub) Create(ctx context.Context, message *models.Message) error {
	message.ID = "m-new"
	clone := *message
	s.messages[message.ID] = &clone
	return nil
}

func (s *messageRepoStub) Update(ctx context.Context, message *models.Message) error {
	clone := *message
	s.messages[message.ID] = &clone
	return nil
}

func (s *messageRepoStub) MarkRead(ctx context.Context, schoolID, id string, readAt time.Time) error {
	s.messages[id].IsRead = true
	s.messages[id].ReadAt = &readAt
	return nil
}

func (s *messageRepoStub) Delete(ctx context.Context, schoolID, id string) error {
	delete(s.messages, id)
	return nil
}

func messageFixture() (*MessageService, *messageRepoStub) {
	repo := &messageRepoStub{messages: map[string]*models.Message{
		"m1": {ID: "m1", SchoolID: "s1a", SenderID: "alice", RecipientID: "bob", Subject: "Fees", Body: "Please confirm"},
	}}
	users := memberStub{"alice": "s1a", "bob": "s1a", "carol": "s2a"}
	return NewMessageService(repo, users, nil, nil), repo
}

func TestMessageServiceSend(t *testing.T) {
	svc, _ := messageFixture()

	_, err := svc.Send(context.Background(), testScope, "alice", MessageRequest{RecipientID: "carol", Subject: "Hi", Body: "x"})
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = svc.Send(context.Background(), testScope, "alice", MessageRequest{RecipientID: "alice", Subject: "Hi", Body: "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	msg, err := svc.Send(context.Background(), testScope, "alice", MessageRequest{RecipientID: "bob", Subject: " Timetable ", Body: "See attached"})
	require.NoError(t, err)
	assert.Equal(t, "Timetable", msg.Subject)
	assert.Equal(t, "s1a", msg.SchoolID)
	assert.False(t, msg.IsRead)
}

func TestMessageServiceReadFlow(t *testing.T) {
	svc, repo := messageFixture()

	_, err := svc.Get(context.Background(), testScope, "mallory", "m1")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	msg, err := svc.Get(context.Background(), testScope, "alice", "m1")
	require.NoError(t, err)
	assert.False(t, msg.IsRead)

	subject := "Fees reminder"
	updated, err := svc.Update(context.Background(), testScope, "alice", "m1", UpdateMessageRequest{Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, "Fees reminder", updated.Subject)

	_, err = svc.Update(context.Background(), testScope, "bob", "m1", UpdateMessageRequest{Subject: &subject})
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	msg, err = svc.Get(context.Background(), testScope, "bob", "m1")
	require.NoError(t, err)
	assert.True(t, msg.IsRead)
	assert.True(t, repo.messages["m1"].IsRead)

	_, err = svc.Update(context.Background(), testScope, "alice", "m1", UpdateMessageRequest{Subject: &subject})
	assert.Equal(t, http.StatusPreconditionFailed, statusOf(err))

	_, err = svc.MarkRead(context.Background(), testScope, "alice", "m1")
	assert.Equal(t, http.StatusForbidden, statusOf(err))
}

func TestMessageServiceListFolders(t *testing.T) {
	svc, repo := messageFixture()

	_, _, err := svc.List(context.Background(), testScope, "bob", models.MessageFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.MessageFolderInbox, repo.lastList.Folder)
	assert.Equal(t, "bob", repo.lastList.UserID)

	_, _, err = svc.List(context.Background(), testScope, "bob", models.MessageFilter{Folder: "trash"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

type notificationRepoStub struct {
	notifications map[string]*models.Notification
	unread        int
	markedAll     string
}

func (s *notificationRepoStub) List(ctx context.Context, schoolID string, filter models.NotificationFilter) ([]models.Notification, int, error) {
	return nil, 0, nil
}

func (s *notificationRepoStub) FindByID(ctx context.Context, schoolID, id string) (*models.Notification, error) {
	n, ok := s.notifications[id]
	if !ok || n.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	clone := *n
	return &clone, nil
}

func (s *notificationRepoStub) Create(ctx context.Context, notification *models.Notification) error {
	notification.ID = "n-new"
	clone := *notification
	s.notifications[notification.ID] = &clone
	return nil
}

func (s *notificationRepoStub) Update(ctx context.Context, notification *models.Notification) error {
	clone := *notification
	s.notifications[notification.ID] = &clone
	return nil
}

func (s *notificationRepoStub) MarkRead(ctx context.Context, schoolID, id string, readAt time.Time) error {
	s.notifications[id].IsRead = true
	return nil
}

func (s *notificationRepoStub) MarkAllRead(ctx context.Context, schoolID, userID string, readAt time.Time) (int64, error) {
	s.markedAll = userID
	return 4, nil
}

func (s *notificationRepoStub) CountUnread(ctx context.Context, schoolID, userID string) (int, error) {
	return s.unread, nil
}

func (s *notificationRepoStub) Delete(ctx context.Context, schoolID, id string) error {
	delete(s.notifications, id)
	return nil
}

type publishedMessage struct {
	schoolID string
	channel  string
	payload  interface{}
}

type recordingPublisher struct {
	published []publishedMessage
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, schoolID, channel string, payload interface{}) error {
	p.published = append(p.published, publishedMessage{schoolID, channel, payload})
	return p.err
}

func (p *recordingPublisher) Close() {}

func TestNotificationServicePublishesOnCreate(t *testing.T) {
	repo := &notificationRepoStub{notifications: map[string]*models.Notification{}}
	publisher := &recordingPublisher{}
	svc := NewNotificationService(repo, memberStub{"bob": "s1a"}, publisher, nil, nil, nil)

	created, err := svc.Create(context.Background(), testScope, NotificationRequest{Title: "Closing early", Message: "School closes at noon"})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationInfo, created.Type)
	assert.Nil(t, created.UserID)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "s1a", publisher.published[0].schoolID)
	assert.Equal(t, NotificationChannel, publisher.published[0].channel)

	publisher.err = errors.New("broker down")
	_, err = svc.Create(context.Background(), testScope, NotificationRequest{Title: "Again", Message: "x", Type: models.NotificationAlert})
	require.NoError(t, err)

	ghost := "ghost"
	_, err = svc.Create(context.Background(), testScope, NotificationRequest{UserID: &ghost, Title: "x", Message: "x"})
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = svc.Create(context.Background(), testScope, NotificationRequest{Title: "x", Message: "x", Type: "urgent"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

func TestNotificationServiceReadVisibility(t *testing.T) {
	bob := "bob"
	repo := &notificationRepoStub{notifications: map[string]*models.Notification{
		"n1": {ID: "n1", SchoolID: "s1a", UserID: &bob, Title: "Payslip ready"},
		"n2": {ID: "n2", SchoolID: "s1a", Title: "Sports day"},
	}}
	svc := NewNotificationService(repo, memberStub{}, nil, nil, nil, nil)

	_, err := svc.MarkRead(context.Background(), testScope, "alice", "n1")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	n, err := svc.MarkRead(context.Background(), testScope, "alice", "n2")
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	count, err := svc.MarkAllRead(context.Background(), testScope, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
	assert.Equal(t, "bob", repo.markedAll)
}

type communicationRepoStub struct {
	logs    map[string]*models.CommunicationLog
	updates int
}

func (s *communicationRepoStub) List(ctx context.Context, schoolID string, filter models.CommunicationFilter) ([]models.CommunicationLog, int, error) {
	return nil, 0, nil
}

func (s *communicationRepoStub) FindByID(ctx context.Context, schoolID, id string) (*models.CommunicationLog, error) {
	entry, ok := s.logs[id]
	if !ok || entry.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	clone := *entry
	return &clone, nil
}

func (s *communicationRepoStub) Create(ctx context.Context, entry *models.CommunicationLog) error {
	entry.ID = "log" + string(entry.Channel)
	clone := *entry
	s.logs[entry.ID] = &clone
	return nil
}

func (s *communicationRepoStub) UpdateDelivery(ctx context.Context, entry *models.CommunicationLog) error {
	s.updates++
	clone := *entry
	s.logs[entry.ID] = &clone
	return nil
}

func (s *communicationRepoStub) ListQueued(ctx context.Context, limit int) ([]models.CommunicationLog, error) {
	var out []models.CommunicationLog
	for _, entry := range s.logs {
		if entry.Status == models.CommunicationQueued {
			out = append(out, *entry)
		}
	}
	return out, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type emailSenderStub struct {
	sent []notify.Email
	err  error
}

func (s *emailSenderStub) Name() string { return "stub" }

func (s *emailSenderStub) SendEmail(ctx context.Context, msg notify.Email) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, msg)
	return "ref-1", nil
}

func TestCommunicationServiceEmailLifecycle(t *testing.T) {
	repo := &communicationRepoStub{logs: map[string]*models.CommunicationLog{}}
	queue := &queueStub{}
	email := &emailSenderStub{}
	metrics := NewMetricsService()
	svc := NewCommunicationService(repo, queue, email, nil, metrics, nil, nil)

	entry, err := svc.SendEmail(context.Background(), testScope, Actor{UserID: "admin"}, EmailRequest{
		To: []string{" Parent@Example.com", "parent@example.com", "guardian@example.com"}, Subject: "Term dates", Body: "Term starts Monday",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CommunicationQueued, entry.Status)
	assert.Equal(t, "stub", entry.Provider)
	assert.Equal(t, []string{"parent@example.com", "guardian@example.com"}, []string(entry.Recipients))
	require.Len(t, queue.jobs, 1)

	require.NoError(t, svc.Dispatch(context.Background(), queue.jobs[0]))
	stored := repo.logs[entry.ID]
	assert.Equal(t, models.CommunicationSent, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "ref-1", *stored.ProviderRef)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "Term dates", email.sent[0].Subject)

	require.NoError(t, svc.Dispatch(context.Background(), queue.jobs[0]))
	assert.Len(t, email.sent, 1)
}

func TestCommunicationServiceFailure(t *testing.T) {
	repo := &communicationRepoStub{logs: map[string]*models.CommunicationLog{}}
	queue := &queueStub{}
	email := &emailSenderStub{err: errors.New("provider rejected")}
	svc := NewCommunicationService(repo, queue, email, nil, nil, nil, nil)

	entry, err := svc.SendEmail(context.Background(), testScope, Actor{}, EmailRequest{To: []string{"a@example.com"}, Subject: "x", Body: "y"})
	require.NoError(t, err)

	dispatchErr := svc.Dispatch(context.Background(), queue.jobs[0])
	require.Error(t, dispatchErr)
	assert.Equal(t, models.CommunicationQueued, repo.logs[entry.ID].Status)
	assert.Equal(t, "provider rejected", *repo.logs[entry.ID].Error)

	svc.HandleFailure(context.Background(), queue.jobs[0], dispatchErr)
	assert.Equal(t, models.CommunicationFailed, repo.logs[entry.ID].Status)

	queue.err = jobs.ErrQueueFull
	_, err = svc.SendEmail(context.Background(), testScope, Actor{}, EmailRequest{To: []string{"b@example.com"}, Subject: "x", Body: "y"})
	assert.Equal(t, http.StatusInternalServerError, statusOf(err))
}

func TestCommunicationServiceSMSValidation(t *testing.T) {
	repo := &communicationRepoStub{logs: map[string]*models.CommunicationLog{}}
	queue := &queueStub{}
	svc := NewCommunicationService(repo, queue, nil, nil, nil, nil, nil)

	long := make([]byte, SMSMaxLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.SendSMS(context.Background(), testScope, Actor{}, SMSRequest{To: []string{"+254700000001"}, Message: string(long)})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	_, err = svc.SendSMS(context.Background(), testScope, Actor{}, SMSRequest{To: []string{"0700"}, Message: "hi"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	entry, err := svc.SendSMS(context.Background(), testScope, Actor{}, SMSRequest{To: []string{"+254700000001"}, Message: "Fees due Friday"})
	require.NoError(t, err)
	assert.Equal(t, models.ChannelSMS, entry.Channel)
	assert.Equal(t, "log", entry.Provider)

	require.NoError(t, svc.Dispatch(context.Background(), queue.jobs[0]))
	assert.Equal(t, models.CommunicationSent, repo.logs[entry.ID].Status)
}

func TestCommunicationServiceRecoverQueued(t *testing.T) {
	repo := &communicationRepoStub{logs: map[string]*models.CommunicationLog{
		"l1": {ID: "l1", SchoolID: "s1a", Channel: models.ChannelEmail, Status: models.CommunicationQueued},
		"l2": {ID: "l2", SchoolID: "s1a", Channel: models.ChannelSMS, Status: models.CommunicationSent},
	}}
	queue := &queueStub{}
	svc := NewCommunicationService(repo, queue, nil, nil, nil, nil, nil)

	assert.Equal(t, 1, svc.RecoverQueued(context.Background(), 50))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "l1", queue.jobs[0].ID)
}
