package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

var dbSeq atomic.Int64

// setupServiceDB opens a fresh in-memory database; the sequence keeps DSNs
// unique when one test opens several databases.
func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Grade{},
		&models.Forecast{},
		&models.FrameworkQuestion{},
		&models.AssessmentAnswer{},
		&models.AssessmentResult{},
	))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
