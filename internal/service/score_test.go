package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FactoryTrust/internal/interfaces"
	"FactoryTrust/internal/model"
	"FactoryTrust/internal/repository"
	"FactoryTrust/internal/score"
	"FactoryTrust/internal/testhelpers"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCoefficient float64

func (f fixedCoefficient) AICoefficient() float64 { return float64(f) }

type recordingNotifier struct {
	mu     sync.Mutex
	events []interfaces.ScoreChangedEvent
	err    error
}

func (n *recordingNotifier) NotifyScoreChanged(_ context.Context, evt interfaces.ScoreChangedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return n.err
}

type failingScoreRepo struct {
	repository.ScoreRepository
}

func (failingScoreRepo) Upsert(context.Context, *model.FactoryScoreRecord) error {
	return errors.New("connection reset")
}

var fixedNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	signals  repository.SignalRepository
	scores   repository.ScoreRepository
	notifier *recordingNotifier
	svc      *ScoreService
	hook     *logtest.Hook
	logger   *logrus.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testhelpers.OpenTestDB(t)
	logger, hook := logtest.NewNullLogger()
	f := &fixture{
		signals:  repository.NewSignalRepository(db),
		scores:   repository.NewScoreRepository(db),
		notifier: &recordingNotifier{},
		hook:     hook,
		logger:   logger,
	}
	f.svc = NewScoreService(f.signals, f.scores, fixedCoefficient(0.4), f.notifier, logger).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func fiveStar(factoryID uint64) *model.Review {
	return &model.Review{
		FactoryID:           factoryID,
		RatingOverall:       5,
		RatingCommunication: 5,
		RatingQuality:       5,
		RatingLeadTime:      5,
		RatingService:       5,
		IsVerifiedPurchase:  true,
	}
}

func TestRecompute_NoSignalsIsNeutral(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.RecomputeFactoryScore(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rec.ScoreFromReviews)
	assert.Equal(t, 50.0, rec.ScoreFromWebinars)
	assert.Equal(t, 50.0, rec.ScoreFromExperts)
	assert.Equal(t, 50.0, rec.HumanRawScore)
	assert.Equal(t, 50.0, rec.AIRawScore)
	assert.Equal(t, 20.0, rec.AIContribution)
	assert.Equal(t, 30.0, rec.HumanContribution)
	assert.Equal(t, 50.0, rec.TotalScore)
	assert.Equal(t, fixedNow, rec.LastComputedAt)
}

func TestRecompute_SingleReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(3)))

	rec, err := f.svc.RecomputeFactoryScore(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rec.ScoreFromReviews)
	assert.Equal(t, 1, rec.ReviewCount)
	assert.Equal(t, 75.0, rec.HumanRawScore)
	// D5 = 0.7*100 + 0.3*5 = 71.5，其余维度中性
	assert.Equal(t, 52.2, rec.AIRawScore)
	assert.Equal(t, 20.9, rec.AIContribution)
	assert.Equal(t, 45.0, rec.HumanContribution)
	assert.Equal(t, 65.9, rec.TotalScore)
	assert.JSONEq(t, `{
		"trust_compliance": 50,
		"fulfillment_agility": 50,
		"market_insight": 50,
		"ecosystem_openness": 50,
		"community_reputation": 71.5
	}`, string(rec.DimensionBreakdown))

	stored, err := f.svc.GetFactoryScore(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 65.9, stored.TotalScore)
}

func TestRecompute_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(8)))
	require.NoError(t, f.signals.CreateWebinarVote(ctx, &model.WebinarVote{FactoryID: 8, WebinarID: 1, Value: 64}))
	verification := 72.0
	require.NoError(t, f.signals.UpsertAIVerification(ctx, &model.AIVerification{FactoryID: 8, VerificationScore: &verification, VerifiedAt: fixedNow}))

	first, err := f.svc.RecomputeFactoryScore(ctx, 8)
	require.NoError(t, err)
	second, err := f.svc.RecomputeFactoryScore(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := f.scores.GetByFactoryID(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, first.TotalScore, stored.TotalScore)
	assert.Equal(t, first.AIRawScore, stored.AIRawScore)
}

func TestRecompute_UnpublishedExpertReviewIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.svc.RecomputeFactoryScore(ctx, 4)
	require.NoError(t, err)

	require.NoError(t, f.signals.CreateExpertReview(ctx, &model.ExpertReview{
		FactoryID: 4, InnovationScore: 100, ManagementScore: 100, PotentialScore: 100,
		Summary: "draft assessment that is not yet public",
	}))
	after, err := f.svc.RecomputeFactoryScore(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, before.TotalScore, after.TotalScore)
	assert.Equal(t, 0, after.ExpertReviewCount)
}

func TestRecompute_MalformedSignalLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.signals.CreateWebinarVote(ctx, &model.WebinarVote{FactoryID: 6, Value: 140}))

	rec, err := f.svc.RecomputeFactoryScore(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rec.ScoreFromWebinars)

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["factory_id"] == uint64(6) {
			warned = true
		}
	}
	assert.True(t, warned, "malformed vote should be logged with factory id")
}

func TestRecompute_PersistenceFailureKeepsPreviousRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prev, err := f.svc.RecomputeFactoryScore(ctx, 5)
	require.NoError(t, err)

	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(5)))
	broken := NewScoreService(f.signals, failingScoreRepo{f.scores}, fixedCoefficient(0.4), f.notifier, f.logger)
	_, err = broken.RecomputeFactoryScore(ctx, 5)
	require.Error(t, err)

	stored, err := f.scores.GetByFactoryID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, prev.TotalScore, stored.TotalScore)
	assert.Equal(t, 0, stored.ReviewCount)
}

func TestRecompute_InvalidCoefficientRejected(t *testing.T) {
	f := newFixture(t)
	svc := NewScoreService(f.signals, f.scores, fixedCoefficient(1), nil, f.logger)
	_, err := svc.RecomputeFactoryScore(context.Background(), 1)
	assert.Error(t, err)
}

func TestRecompute_NotifiesWithPreviousTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecomputeFactoryScore(ctx, 9)
	require.NoError(t, err)
	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(9)))
	_, err = f.svc.RecomputeFactoryScore(ctx, 9)
	require.NoError(t, err)

	require.Len(t, f.notifier.events, 2)
	assert.Nil(t, f.notifier.events[0].PreviousTotal)
	require.NotNil(t, f.notifier.events[1].PreviousTotal)
	assert.Equal(t, 50.0, *f.notifier.events[1].PreviousTotal)
	assert.Equal(t, 65.9, f.notifier.events[1].TotalScore)
}

func TestRecompute_NotifyFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("webhook down")

	rec, err := f.svc.RecomputeFactoryScore(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rec.TotalScore)
}

// trackingSignalRepo 统计同一时刻进入 ReadSnapshot 的重算数
type trackingSignalRepo struct {
	repository.SignalRepository
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (r *trackingSignalRepo) ReadSnapshot(ctx context.Context, factoryID uint64) (score.Snapshot, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return r.SignalRepository.ReadSnapshot(ctx, factoryID)
}

// gatedNotifier 第一次推送阻塞到 release 关闭
type gatedNotifier struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (n *gatedNotifier) NotifyScoreChanged(ctx context.Context, _ interfaces.ScoreChangedEvent) error {
	if n.calls.Add(1) == 1 {
		close(n.entered)
		select {
		case <-n.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func TestRecompute_SerializesPerFactoryAcrossPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(4)))
	tracking := &trackingSignalRepo{SignalRepository: f.signals}
	svc := NewScoreService(tracking, f.scores, fixedCoefficient(0.4), nil, f.logger)
	trigger := NewInlineTrigger(svc)

	// 写入触发、手动重算、批量重算同时落在工厂 4 上
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			assert.NoError(t, trigger.Trigger(ctx, 4))
		}()
		go func() {
			defer wg.Done()
			_, err := svc.RecomputeFactoryScore(ctx, 4)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.RecomputeAll(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), tracking.maxSeen.Load())

	stored, err := f.scores.GetByFactoryID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 65.9, stored.TotalScore)
}

func TestRecompute_NotifyRunsOutsideFactoryLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notifier := &gatedNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewScoreService(f.signals, f.scores, fixedCoefficient(0.4), notifier, f.logger)
	defer close(notifier.release)

	slow := make(chan error, 1)
	go func() {
		_, err := svc.RecomputeFactoryScore(ctx, 6)
		slow <- err
	}()
	select {
	case <-notifier.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}

	// 推送卡住时，同一工厂的后续写入照常重算落库
	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(6)))
	done := make(chan struct{})
	go func() {
		defer close(done)
		rec, err := svc.RecomputeFactoryScore(ctx, 6)
		assert.NoError(t, err)
		assert.Equal(t, 65.9, rec.TotalScore)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recompute blocked behind a slow notifier")
	}
	select {
	case err := <-slow:
		t.Fatalf("first recompute returned before notifier released: %v", err)
	default:
	}
}

func TestFactoryLocks_FixedStripes(t *testing.T) {
	var locks factoryLocks
	assert.Same(t, locks.forFactory(7), locks.forFactory(7))
	assert.Same(t, locks.forFactory(7), locks.forFactory(7+lockStripes))
	assert.NotSame(t, locks.forFactory(7), locks.forFactory(8))
	assert.Len(t, locks.stripes[:], lockStripes)
}

func TestGetFactoryScore_NeverScored(t *testing.T) {
	f := newFixture(t)
	rec, err := f.svc.GetFactoryScore(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPreviewCoefficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PreviewCoefficient(ctx, 3, 0.6)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(3)))
	_, err = f.svc.RecomputeFactoryScore(ctx, 3)
	require.NoError(t, err)

	preview, err := f.svc.PreviewCoefficient(ctx, 3, 0.6)
	require.NoError(t, err)
	// 52.2*0.6 = 31.32 → 31.3；75*0.4 = 30.0
	assert.Equal(t, 31.3, preview.AIContribution)
	assert.Equal(t, 30.0, preview.HumanContribution)
	assert.Equal(t, 61.3, preview.TotalScore)
	assert.Equal(t, 65.9, preview.CurrentTotalScore)
	assert.Equal(t, 0.4, preview.CurrentCoefficient)

	stored, err := f.svc.GetFactoryScore(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 65.9, stored.TotalScore, "preview must not persist")

	_, err = f.svc.PreviewCoefficient(ctx, 3, 0)
	assert.True(t, errors.Is(err, ErrInvalidSignal))
}

func TestListScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(1)))
	_, err := f.svc.RecomputeFactoryScore(ctx, 1)
	require.NoError(t, err)
	_, err = f.svc.RecomputeFactoryScore(ctx, 2)
	require.NoError(t, err)

	result, err := f.svc.ListScores(ctx, repository.ScoreFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 20, result.PageSize)
	require.Len(t, result.List, 2)
	assert.Equal(t, uint64(1), result.List[0].FactoryID)
}

func TestRecomputeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.signals.CreateReview(ctx, fiveStar(2)))
	require.NoError(t, f.signals.CreateWebinarVote(ctx, &model.WebinarVote{FactoryID: 7, Value: 90}))
	_, err := f.svc.RecomputeFactoryScore(ctx, 5)
	require.NoError(t, err)

	summary, err := f.svc.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Zero(t, summary.Failed)

	ids, err := f.scores.ListFactoryIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 5, 7}, ids)
}

func TestMergeIDs(t *testing.T) {
	assert.Equal(t, []uint64{1, 2, 3, 5, 8}, mergeIDs([]uint64{1, 3, 5}, []uint64{2, 3, 8}))
	assert.Equal(t, []uint64{4}, mergeIDs(nil, []uint64{4}))
	assert.Empty(t, mergeIDs(nil, nil))
}
