package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

func frameworkRow(version, code, question string, weight float64) models.FrameworkQuestion {
	return models.FrameworkQuestion{
		Version:        version,
		CategoryCode:   code,
		CareerCategory: "Engineering & Technology",
		Question:       question,
		Weight:         weight,
	}
}

func TestFrameworkRepositoryReplaceVersionIsolation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFrameworkRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceVersion(ctx, "v1", []models.FrameworkQuestion{
		frameworkRow("v1", "R", "Does the student show hands-on aptitude?", 0.9),
		frameworkRow("v1", "I", "Does the student show research aptitude?", 0.8),
	}))
	require.NoError(t, repo.ReplaceVersion(ctx, "v2", []models.FrameworkQuestion{
		frameworkRow("v2", "R", "Updated hands-on question?", 1.0),
	}))

	// Re-import v1; v2 must be untouched.
	require.NoError(t, repo.ReplaceVersion(ctx, "v1", []models.FrameworkQuestion{
		frameworkRow("v1", "A", "Does the student show creative aptitude?", 0.7),
	}))

	v1, err := repo.ListByVersion(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, v1, 1)
	require.Equal(t, "A", v1[0].CategoryCode)

	v2, err := repo.ListByVersion(ctx, "v2")
	require.NoError(t, err)
	require.Len(t, v2, 1)
	require.Equal(t, "Updated hands-on question?", v2[0].Question)

	versions, err := repo.Versions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2"}, versions)

	count, err := repo.CountByVersion(ctx, "v2")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestFrameworkRepositoryListOrderIsStable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFrameworkRepository(db)
	ctx := context.Background()

	rows := []models.FrameworkQuestion{
		frameworkRow("v1", "R", "First?", 0.9),
		frameworkRow("v1", "I", "Second?", 0.8),
		frameworkRow("v1", "A", "Third?", 0.7),
	}
	require.NoError(t, repo.ReplaceVersion(ctx, "v1", rows))

	first, err := repo.ListByVersion(ctx, "v1")
	require.NoError(t, err)
	second, err := repo.ListByVersion(ctx, "v1")
	require.NoError(t, err)

	require.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		require.Greater(t, first[i].ID, first[i-1].ID)
	}
}
