package ingestion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/therealityreport/socializer/internal/domain"
)

type fakeThreadRepo struct {
	byID       map[string]domain.Thread
	byRedditID map[string]string
	nextID     int
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{byID: map[string]domain.Thread{}, byRedditID: map[string]string{}}
}

func (f *fakeThreadRepo) Upsert(ctx domain.Context, t domain.Thread) (domain.Thread, error) {
	if t.ID == "" {
		if id, ok := f.byRedditID[t.RedditID]; ok {
			t.ID = id
		} else {
			f.nextID++
			t.ID = fmt.Sprintf("thread-%d", f.nextID)
			f.byRedditID[t.RedditID] = t.ID
		}
	}
	f.byID[t.ID] = t
	return t, nil
}

func (f *fakeThreadRepo) Get(ctx domain.Context, id string) (domain.Thread, error) {
	t, ok := f.byID[id]
	if !ok {
		return domain.Thread{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeThreadRepo) GetByRedditID(ctx domain.Context, redditID string) (domain.Thread, error) {
	id, ok := f.byRedditID[redditID]
	if !ok {
		return domain.Thread{}, domain.ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeThreadRepo) UpdatePollState(ctx domain.Context, id string, status domain.ThreadStatus, lastPolled, latestComment *time.Time, totalComments int) error {
	t, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.LastPolled = lastPolled
	t.LatestComment = latestComment
	t.TotalComments = totalComments
	f.byID[id] = t
	return nil
}

type fakeCommentRepo struct {
	rows   map[string]domain.Comment // keyed by thread+reddit id
	nextID int
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{rows: map[string]domain.Comment{}}
}

func ckey(threadID, redditID string) string { return threadID + "/" + redditID }

func (f *fakeCommentRepo) FindByThreadAndRedditID(ctx domain.Context, threadID, redditID string) (domain.Comment, bool, error) {
	c, ok := f.rows[ckey(threadID, redditID)]
	return c, ok, nil
}

func (f *fakeCommentRepo) Insert(ctx domain.Context, c domain.Comment) (domain.Comment, error) {
	f.nextID++
	c.ID = fmt.Sprintf("comment-%d", f.nextID)
	f.rows[ckey(c.ThreadID, c.RedditID)] = c
	return c, nil
}

func (f *fakeCommentRepo) Update(ctx domain.Context, c domain.Comment) error {
	f.rows[ckey(c.ThreadID, c.RedditID)] = c
	return nil
}

func (f *fakeCommentRepo) IncrementReplyCounts(ctx domain.Context, ancestorIDs []string, latest time.Time) error {
	for k, c := range f.rows {
		for _, id := range ancestorIDs {
			if c.ID == id {
				c.ReplyCount++
				if latest.After(c.UpdatedAt) {
					c.UpdatedAt = latest
				}
				f.rows[k] = c
			}
		}
	}
	return nil
}

func (f *fakeCommentRepo) Get(ctx domain.Context, id string, created time.Time) (domain.Comment, error) {
	for _, c := range f.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Comment{}, domain.ErrNotFound
}

func (f *fakeCommentRepo) ListByIDs(ctx domain.Context, ids []domain.CommentKey) ([]domain.Comment, error) {
	return nil, nil
}

func (f *fakeCommentRepo) ListForThread(ctx domain.Context, threadID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range f.rows {
		if c.ThreadID == threadID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCommentRepo) UpdateSentiment(ctx domain.Context, c domain.Comment) error {
	f.rows[ckey(c.ThreadID, c.RedditID)] = c
	return nil
}

type fakeRedditClient struct {
	submission domain.RedditSubmission
	comments   []domain.RedditComment
}

func (f *fakeRedditClient) GetSubmission(ctx domain.Context, redditID string) (domain.RedditSubmission, error) {
	return f.submission, nil
}

func (f *fakeRedditClient) FetchSubmissionRaw(ctx domain.Context, redditID string) (map[string]any, error) {
	return map[string]any{"id": redditID}, nil
}

func (f *fakeRedditClient) FetchComments(ctx domain.Context, redditID string) ([]domain.RedditComment, error) {
	return f.comments, nil
}

func TestIngestThread_InsertsCommentsAndMarksLive(t *testing.T) {
	airTime := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	reddit := &fakeRedditClient{
		submission: domain.RedditSubmission{
			RedditID: "abc", Subreddit: "realitytv", Title: "Live Thread",
			CreatedUTC: airTime, NumComments: 2, IsArchived: false,
		},
		comments: []domain.RedditComment{
			{ID: "c1", Author: "alice", Body: "wow", Score: 5, CreatedUTC: airTime.Add(time.Hour), ParentID: "t3_abc"},
			{ID: "c2", Author: "bob", Body: "agreed", Score: 1, CreatedUTC: airTime.Add(90 * time.Minute), ParentID: "t1_c1"},
		},
	}
	threads := newFakeThreadRepo()
	comments := newFakeCommentRepo()
	eng := New(Engine{
		Threads: threads, Comments: comments, Reddit: reddit,
		AuthorSalt: "pepper", PrimaryZone: time.UTC, AutoArchive: false,
		BlobKeyPrefix: "reddit",
	})

	result, err := eng.IngestThread(context.Background(), "abc", "realitytv")
	require.NoError(t, err)
	require.Equal(t, 2, result.Inserted)
	require.Equal(t, domain.ThreadLive, result.Status)
	require.True(t, result.ShouldSchedulePoll)

	c1, found, err := comments.FindByThreadAndRedditID(context.Background(), threads.byRedditID["abc"], "c1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, c1.ReplyCount, "c1 should have its reply_count incremented by c2's reconciliation")
	require.NotNil(t, c1.AuthorHash)
}

func TestIngestThread_ArchivedWhenRedditReportsArchived(t *testing.T) {
	reddit := &fakeRedditClient{
		submission: domain.RedditSubmission{RedditID: "abc", Subreddit: "realitytv", IsArchived: true},
	}
	threads := newFakeThreadRepo()
	comments := newFakeCommentRepo()
	eng := New(Engine{Threads: threads, Comments: comments, Reddit: reddit, PrimaryZone: time.UTC})

	result, err := eng.IngestThread(context.Background(), "abc", "realitytv")
	require.NoError(t, err)
	require.Equal(t, domain.ThreadArchived, result.Status)
	require.False(t, result.ShouldSchedulePoll)
}

func TestPollThread_OnlyPersistsCommentsNewerThanLatestSeen(t *testing.T) {
	threads := newFakeThreadRepo()
	comments := newFakeCommentRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	thread, _ := threads.Upsert(context.Background(), domain.Thread{
		RedditID: "abc", Subreddit: "realitytv", Created: base, Status: domain.ThreadLive,
		LatestComment: &base,
	})

	reddit := &fakeRedditClient{
		submission: domain.RedditSubmission{RedditID: "abc"},
		comments: []domain.RedditComment{
			{ID: "old", Body: "before", CreatedUTC: base.Add(-time.Minute)},
			{ID: "new", Body: "after", CreatedUTC: base.Add(time.Minute)},
		},
	}
	eng := New(Engine{Threads: threads, Comments: comments, Reddit: reddit, PrimaryZone: time.UTC})

	result, err := eng.PollThread(context.Background(), thread.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Inserted)

	_, found, _ := comments.FindByThreadAndRedditID(context.Background(), thread.ID, "old")
	require.False(t, found)
	_, found, _ = comments.FindByThreadAndRedditID(context.Background(), thread.ID, "new")
	require.True(t, found)
}

func TestPersistComments_BodyChangeMarksCandidateForReclassification(t *testing.T) {
	threads := newFakeThreadRepo()
	comments := newFakeCommentRepo()
	reddit := &fakeRedditClient{submission: domain.RedditSubmission{RedditID: "abc"}}
	eng := New(Engine{Threads: threads, Comments: comments, Reddit: reddit, PrimaryZone: time.UTC})

	thread := domain.Thread{ID: "t1", RedditID: "abc"}
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	out, err := eng.persistComments(context.Background(), thread, []domain.RedditComment{
		{ID: "c1", Body: "first version", CreatedUTC: created},
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.inserted)

	out, err = eng.persistComments(context.Background(), thread, []domain.RedditComment{
		{ID: "c1", Body: "edited version", CreatedUTC: created},
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.updated)
	require.Len(t, out.candidateIDs, 1)
}
