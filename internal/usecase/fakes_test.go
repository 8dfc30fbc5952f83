package usecase

import (
	"context"
	"time"

	"github.com/therealityreport/socializer/internal/domain"
)

// fakeThreadRepo is an in-memory domain.ThreadRepository.
type fakeThreadRepo struct {
	byID       map[string]domain.Thread
	byRedditID map[string]domain.Thread
	nextID     int
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{byID: map[string]domain.Thread{}, byRedditID: map[string]domain.Thread{}}
}

func (f *fakeThreadRepo) Upsert(ctx context.Context, t domain.Thread) (domain.Thread, error) {
	if t.ID == "" {
		f.nextID++
		t.ID = "thread-generated"
	}
	f.byID[t.ID] = t
	f.byRedditID[t.RedditID] = t
	return t, nil
}

func (f *fakeThreadRepo) Get(ctx context.Context, id string) (domain.Thread, error) {
	t, ok := f.byID[id]
	if !ok {
		return domain.Thread{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeThreadRepo) GetByRedditID(ctx context.Context, redditID string) (domain.Thread, error) {
	t, ok := f.byRedditID[redditID]
	if !ok {
		return domain.Thread{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeThreadRepo) UpdatePollState(ctx context.Context, id string, status domain.ThreadStatus, lastPolled, latestComment *time.Time, totalComments int) error {
	t, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.LastPolled = lastPolled
	t.LatestComment = latestComment
	t.TotalComments = totalComments
	f.byID[id] = t
	f.byRedditID[t.RedditID] = t
	return nil
}

// fakeCommentRepo is an in-memory domain.CommentRepository keyed by (id, created).
type fakeCommentRepo struct {
	rows   map[string]domain.Comment // keyed by ID only; created is carried on the row
	nextID int
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{rows: map[string]domain.Comment{}}
}

func (f *fakeCommentRepo) FindByThreadAndRedditID(ctx context.Context, threadID, redditID string) (domain.Comment, bool, error) {
	for _, c := range f.rows {
		if c.ThreadID == threadID && c.RedditID == redditID {
			return c, true, nil
		}
	}
	return domain.Comment{}, false, nil
}

func (f *fakeCommentRepo) Insert(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	f.nextID++
	c.ID = "comment-" + itoa(f.nextID)
	f.rows[c.ID] = c
	return c, nil
}

func (f *fakeCommentRepo) Update(ctx context.Context, c domain.Comment) error {
	f.rows[c.ID] = c
	return nil
}

func (f *fakeCommentRepo) IncrementReplyCounts(ctx context.Context, ancestorIDs []string, latest time.Time) error {
	return nil
}

func (f *fakeCommentRepo) Get(ctx context.Context, id string, created time.Time) (domain.Comment, error) {
	c, ok := f.rows[id]
	if !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCommentRepo) ListByIDs(ctx context.Context, ids []domain.CommentKey) ([]domain.Comment, error) {
	out := make([]domain.Comment, 0, len(ids))
	for _, k := range ids {
		if c, ok := f.rows[k.ID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCommentRepo) ListForThread(ctx context.Context, threadID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range f.rows {
		if c.ThreadID == threadID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCommentRepo) UpdateSentiment(ctx context.Context, c domain.Comment) error {
	f.rows[c.ID] = c
	return nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// fakeMentionRepo is an in-memory domain.MentionRepository.
type fakeMentionRepo struct {
	byComment map[string][]domain.Mention
	forThread []domain.MentionWithContext
}

func newFakeMentionRepo() *fakeMentionRepo {
	return &fakeMentionRepo{byComment: map[string][]domain.Mention{}}
}

func (f *fakeMentionRepo) DeleteForComment(ctx context.Context, commentID string, commentCreated time.Time) error {
	delete(f.byComment, commentID)
	return nil
}

func (f *fakeMentionRepo) InsertBatch(ctx context.Context, mentions []domain.Mention) error {
	for _, m := range mentions {
		f.byComment[m.CommentID] = append(f.byComment[m.CommentID], m)
	}
	return nil
}

func (f *fakeMentionRepo) ListForParent(ctx context.Context, parentCommentID string, parentCreated time.Time) ([]domain.Mention, error) {
	return f.byComment[parentCommentID], nil
}

func (f *fakeMentionRepo) ListForThread(ctx context.Context, threadID string) ([]domain.MentionWithContext, error) {
	return f.forThread, nil
}

// fakeAggregateRepo is an in-memory domain.AggregateRepository.
type fakeAggregateRepo struct {
	byThread map[string][]domain.Aggregate
}

func newFakeAggregateRepo() *fakeAggregateRepo {
	return &fakeAggregateRepo{byThread: map[string][]domain.Aggregate{}}
}

func (f *fakeAggregateRepo) ReplaceForThread(ctx context.Context, threadID string, rows []domain.Aggregate) error {
	f.byThread[threadID] = rows
	return nil
}

func (f *fakeAggregateRepo) ListForThread(ctx context.Context, threadID string) ([]domain.Aggregate, error) {
	return f.byThread[threadID], nil
}

// fakeRuleRepo is an in-memory domain.AlertRuleRepository.
type fakeRuleRepo struct {
	byThread []domain.AlertRule
	byID     map[string]domain.AlertRule
}

func (f *fakeRuleRepo) ListActiveForThread(ctx context.Context, threadID string) ([]domain.AlertRule, error) {
	return f.byThread, nil
}

func (f *fakeRuleRepo) Get(ctx context.Context, id string) (domain.AlertRule, error) {
	r, ok := f.byID[id]
	if !ok {
		return domain.AlertRule{}, domain.ErrNotFound
	}
	return r, nil
}

// fakeEventRepo is an in-memory domain.AlertEventRepository.
type fakeEventRepo struct {
	byID       map[string]domain.AlertEvent
	mostRecent map[string]domain.AlertEvent
	nextID     int
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: map[string]domain.AlertEvent{}, mostRecent: map[string]domain.AlertEvent{}}
}

func (f *fakeEventRepo) Create(ctx context.Context, e domain.AlertEvent) (domain.AlertEvent, error) {
	f.nextID++
	e.ID = "event-" + itoa(f.nextID)
	f.byID[e.ID] = e
	f.mostRecent[e.AlertRuleID] = e
	return e, nil
}

func (f *fakeEventRepo) Get(ctx context.Context, id string) (domain.AlertEvent, error) {
	e, ok := f.byID[id]
	if !ok {
		return domain.AlertEvent{}, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeEventRepo) MostRecentForRule(ctx context.Context, ruleID string) (domain.AlertEvent, bool, error) {
	e, ok := f.mostRecent[ruleID]
	return e, ok, nil
}

func (f *fakeEventRepo) UpdateDeliveredChannels(ctx context.Context, id string, channels []string) error {
	e, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.DeliveredChannels = channels
	f.byID[id] = e
	return nil
}

// fakeCastMemberRepo is an in-memory domain.CastMemberRepository.
type fakeCastMemberRepo struct {
	active []domain.CastMember
	byID   map[string]domain.CastMember
}

func (f *fakeCastMemberRepo) ListActive(ctx context.Context) ([]domain.CastMember, error) {
	return f.active, nil
}

func (f *fakeCastMemberRepo) Get(ctx context.Context, id string) (domain.CastMember, error) {
	c, ok := f.byID[id]
	if !ok {
		return domain.CastMember{}, domain.ErrNotFound
	}
	return c, nil
}

// fakeQueue is an in-memory domain.Queue recording every enqueue call.
type fakeQueue struct {
	classifyCalls  [][]domain.CommentKey
	linkCalls      [][]domain.CommentKey
	aggregateCalls []string
	alertCalls     []string
	deliverCalls   []string
	pollCalls      []string
	ingestCalls    []string
	nextID         int
}

func (f *fakeQueue) taskID() string {
	f.nextID++
	return "task-" + itoa(f.nextID)
}

func (f *fakeQueue) EnqueueIngestThread(ctx context.Context, redditID, subreddit string) (string, error) {
	f.ingestCalls = append(f.ingestCalls, redditID)
	return f.taskID(), nil
}

func (f *fakeQueue) EnqueuePollThread(ctx context.Context, threadID string, countdown time.Duration) (string, error) {
	f.pollCalls = append(f.pollCalls, threadID)
	return f.taskID(), nil
}

func (f *fakeQueue) EnqueueClassifyComments(ctx context.Context, ids []domain.CommentKey) (string, error) {
	f.classifyCalls = append(f.classifyCalls, ids)
	return f.taskID(), nil
}

func (f *fakeQueue) EnqueueLinkEntities(ctx context.Context, ids []domain.CommentKey) (string, error) {
	f.linkCalls = append(f.linkCalls, ids)
	return f.taskID(), nil
}

func (f *fakeQueue) EnqueueComputeAggregates(ctx context.Context, threadID string) (string, error) {
	f.aggregateCalls = append(f.aggregateCalls, threadID)
	return f.taskID(), nil
}

func (f *fakeQueue) EnqueueCheckAlerts(ctx context.Context, threadID string) (string, error) {
	f.alertCalls = append(f.alertCalls, threadID)
	return f.taskID(), nil
}

func (f *fakeQueue) EnqueueDeliverAlertEvent(ctx context.Context, eventID string) (string, error) {
	f.deliverCalls = append(f.deliverCalls, eventID)
	return f.taskID(), nil
}

// fakeReddit is an in-memory domain.RedditClient.
type fakeReddit struct {
	submission domain.RedditSubmission
	comments   []domain.RedditComment
}

func (f *fakeReddit) GetSubmission(ctx context.Context, redditID string) (domain.RedditSubmission, error) {
	return f.submission, nil
}

func (f *fakeReddit) FetchSubmissionRaw(ctx context.Context, redditID string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (f *fakeReddit) FetchComments(ctx context.Context, redditID string) ([]domain.RedditComment, error) {
	return f.comments, nil
}

// fakeScorer is a domain.SentimentScorer that returns a fixed, confident prediction.
type fakeScorer struct{}

func (fakeScorer) Score(ctx context.Context, text string) (domain.PrimaryPrediction, error) {
	return domain.PrimaryPrediction{Label: domain.SentimentPositive, Score: 0.95, Margin: 0.4}, nil
}

func (fakeScorer) ModelVersion() string { return "test-model-v1" }
