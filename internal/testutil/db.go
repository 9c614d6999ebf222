// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"ecosystia_backend/database"
	"ecosystia_backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(uuid.NewString(), "-", ""))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts an active user named username.
func CreateUser(t *testing.T, db *gorm.DB, username string, staff bool) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@ecosystia.test",
		FirstName:    strings.ToUpper(username[:1]) + username[1:],
		PasswordHash: "x",
		IsStaff:      staff,
		IsActive:     true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateProject(t *testing.T, db *gorm.DB, owner *models.User, members ...*models.User) *models.Project {
	t.Helper()
	p := &models.Project{Name: "Projet " + owner.Username, OwnerID: owner.ID, Status: models.ProjectStatusPlanning}
	for _, m := range members {
		p.TeamMembers = append(p.TeamMembers, *m)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func CreateMeeting(t *testing.T, db *gorm.DB, organizer *models.User, start time.Time, attendees ...*models.User) *models.Meeting {
	t.Helper()
	m := &models.Meeting{Title: "Point hebdo", OrganizerID: organizer.ID, StartTime: start, Status: models.MeetingStatusScheduled}
	for _, a := range attendees {
		m.Attendees = append(m.Attendees, *a)
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

// CreateNotification inserts a notification for recipient with the given read state and age.
func CreateNotification(t *testing.T, db *gorm.DB, recipientID string, read bool, age time.Duration) *models.Notification {
	t.Helper()
	n := &models.Notification{
		RecipientID: recipientID,
		Title:       "Titre",
		Message:     "Message",
		Type:        models.NotificationTypeInfo,
		Category:    models.CategorySystem,
	}
	n.CreatedAt = time.Now().Add(-age)
	if read {
		readAt := n.CreatedAt
		n.IsRead = true
		n.ReadAt = &readAt
	}
	require.NoError(t, db.Create(n).Error)
	return n
}
