package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

// setupTestDB opens a per-test in-memory database. Each test gets its own
// named shared-cache DSN so parallel tests never see each other's rows.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
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
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func seedStudent(t *testing.T, db *gorm.DB, id, name string) models.Student {
	t.Helper()
	student := models.Student{ID: id, Name: name, Age: 17, School: "THPT Chu Van An"}
	require.NoError(t, db.Create(&student).Error)
	return student
}
