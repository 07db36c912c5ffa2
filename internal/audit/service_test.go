package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	err        error
	lastOffset int
	lastLimit  int
}

func (s *stubTimelineRepo) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastOffset, s.lastLimit = offset, limit
	if s.err != nil {
		return nil, s.err
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	if offset > end {
		return nil, nil
	}
	return s.rows[offset:end], nil
}

func (s *stubTimelineRepo) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return s.rows, s.err
}

func permissionRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	at := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{
			ID:       int64(n - i),
			At:       at.Add(-time.Duration(i) * time.Hour),
			ActorID:  "1",
			Action:   "permissions.replace",
			Entity:   "user",
			EntityID: "4",
		}
	}
	return rows
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: permissionRows(3)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
	assert.Equal(t, 3, repo.lastLimit)
	assert.Equal(t, 0, repo.lastOffset)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 1, result.Paging.PrevPage)
	assert.Equal(t, 2, repo.lastOffset)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
	assert.Equal(t, maxPageSize+1, repo.lastLimit)
	assert.NotNil(t, result.Rows)

	result, err = svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize, result.Paging.PageSize)
	assert.Equal(t, 1, result.Paging.Page)
}

func TestServiceErrors(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, errNoRepository)

	boom := errors.New("db down")
	_, err = NewService(&stubTimelineRepo{err: boom}).Export(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, boom)
}

func TestWriteCSV(t *testing.T) {
	rows := permissionRows(1)
	rows[0].Meta = json.RawMessage(`{"records":[]}`)

	out, err := WriteCSV(rows)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,at,actor_id,action,entity,entity_id,meta", lines[0])
	assert.Equal(t, `1,2024-03-10T10:00:00Z,1,permissions.replace,user,4,"{""records"":[]}"`, lines[1])
}
