package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"FactoryTrust/internal/model"
	"FactoryTrust/internal/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newReview(factoryID uint64, rating int, verified bool) *model.Review {
	return &model.Review{
		FactoryID:           factoryID,
		RatingOverall:       rating,
		RatingCommunication: rating,
		RatingQuality:       rating,
		RatingLeadTime:      rating,
		RatingService:       rating,
		IsVerifiedPurchase:  verified,
	}
}

func TestSignalRepository_ListByFactory(t *testing.T) {
	repo := NewSignalRepository(testhelpers.OpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateReview(ctx, newReview(1, 5, true)))
	require.NoError(t, repo.CreateReview(ctx, newReview(1, 3, false)))
	require.NoError(t, repo.CreateReview(ctx, newReview(2, 1, false)))
	require.NoError(t, repo.CreateWebinarVote(ctx, &model.WebinarVote{FactoryID: 1, WebinarID: 9, Value: 88}))

	reviews, err := repo.ListReviews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.True(t, reviews[0].IsVerifiedPurchase)
	assert.Less(t, reviews[0].ID, reviews[1].ID)

	votes, err := repo.ListWebinarVotes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, 88.0, votes[0].Value)

	votes, err = repo.ListWebinarVotes(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestSignalRepository_PublishedExpertReviewsOnly(t *testing.T) {
	repo := NewSignalRepository(testhelpers.OpenTestDB(t))
	ctx := context.Background()

	draft := &model.ExpertReview{FactoryID: 1, InnovationScore: 10, ManagementScore: 10, PotentialScore: 10, Summary: "draft summary for the panel"}
	live := &model.ExpertReview{FactoryID: 1, InnovationScore: 90, ManagementScore: 90, PotentialScore: 90, Summary: "published summary for the panel", IsPublished: true}
	require.NoError(t, repo.CreateExpertReview(ctx, draft))
	require.NoError(t, repo.CreateExpertReview(ctx, live))

	list, err := repo.ListPublishedExpertReviews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, live.ID, list[0].ID)

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	published, err := repo.PublishExpertReview(ctx, draft.ID, at)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	require.NotNil(t, published.PublishedAt)

	list, err = repo.ListPublishedExpertReviews(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = repo.PublishExpertReview(ctx, 999, at)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestSignalRepository_AIVerificationUpsert(t *testing.T) {
	repo := NewSignalRepository(testhelpers.OpenTestDB(t))
	ctx := context.Background()

	v, err := repo.GetAIVerification(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, v)

	first, second := 60.0, 85.0
	require.NoError(t, repo.UpsertAIVerification(ctx, &model.AIVerification{FactoryID: 5, VerificationScore: &first, VerifiedAt: time.Now()}))
	require.NoError(t, repo.UpsertAIVerification(ctx, &model.AIVerification{FactoryID: 5, VerificationScore: &second, VerifiedAt: time.Now()}))

	v, err = repo.GetAIVerification(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.NotNil(t, v.VerificationScore)
	assert.Equal(t, 85.0, *v.VerificationScore)
	assert.Nil(t, v.CertificationCount)
}

func TestSignalRepository_ReadSnapshot(t *testing.T) {
	repo := NewSignalRepository(testhelpers.OpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateReview(ctx, newReview(3, 4, true)))
	require.NoError(t, repo.CreateWebinarVote(ctx, &model.WebinarVote{FactoryID: 3, Value: 70}))
	require.NoError(t, repo.CreateExpertReview(ctx, &model.ExpertReview{FactoryID: 3, InnovationScore: 1, ManagementScore: 1, PotentialScore: 1, Summary: "unpublished summary text"}))

	snap, err := repo.ReadSnapshot(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), snap.FactoryID)
	assert.Len(t, snap.Reviews, 1)
	assert.Len(t, snap.WebinarVotes, 1)
	assert.Empty(t, snap.ExpertReviews)
	assert.Nil(t, snap.Verification)
}

func TestSignalRepository_ReadSnapshotIsReadOnlyRepeatableRead(t *testing.T) {
	assert.Equal(t, sql.LevelRepeatableRead, snapshotTxOptions.Isolation)
	assert.True(t, snapshotTxOptions.ReadOnly)

	// 只读事务下快照照常读出，且不影响随后的写入
	repo := NewSignalRepository(testhelpers.OpenTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.CreateReview(ctx, newReview(6, 5, true)))
	snap, err := repo.ReadSnapshot(ctx, 6)
	require.NoError(t, err)
	assert.Len(t, snap.Reviews, 1)

	require.NoError(t, repo.CreateReview(ctx, newReview(6, 3, true)))
	snap, err = repo.ReadSnapshot(ctx, 6)
	require.NoError(t, err)
	assert.Len(t, snap.Reviews, 2)
}

func TestSignalRepository_ListFactoryIDs(t *testing.T) {
	repo := NewSignalRepository(testhelpers.OpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateReview(ctx, newReview(4, 4, true)))
	require.NoError(t, repo.CreateReview(ctx, newReview(4, 2, true)))
	require.NoError(t, repo.CreateWebinarVote(ctx, &model.WebinarVote{FactoryID: 2, Value: 70}))
	require.NoError(t, repo.UpsertAIVerification(ctx, &model.AIVerification{FactoryID: 9, VerifiedAt: time.Now()}))

	ids, err := repo.ListFactoryIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4, 9}, ids)
}
