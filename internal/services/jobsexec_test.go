package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

func TestStartJobPausesCurrentActive(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	reply := send(t, e, "start job Deck Build")
	require.Contains(t, reply.Text, "Deck Build")
	require.Contains(t, reply.Text, "Paused job #1")

	active, err := store.GetJobsByStatus(testTenant, testPhone, models.JobStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, 2, active[0].Number)

	paused, err := store.GetJobsByStatus(testTenant, testPhone, models.JobStatusPaused)
	require.NoError(t, err)
	require.Len(t, paused, 1)
	require.Equal(t, 1, paused[0].Number)
}

func TestFinishJobByNumber(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	reply := send(t, e, "finish job 1")
	require.Contains(t, reply.Text, "finished")

	job, err := store.GetJob(testTenant, testPhone, 1)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFinished, job.Status)
	require.NotNil(t, job.FinishedAt)
}

func TestFinishJobUnknownNumber(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	reply := send(t, e, "finish job 9")
	require.Contains(t, reply.Text, "no job #9")
}

func TestResumePausedJob(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "start job Deck Build")
	reply := send(t, e, "resume job 1")
	require.Contains(t, reply.Text, "Back on job #1")

	active, err := store.GetJobsByStatus(testTenant, testPhone, models.JobStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, 1, active[0].Number)
}

func TestListJobsMarksActive(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	send(t, e, "start job Deck Build")

	reply := send(t, e, "list jobs")
	require.Contains(t, reply.Text, "job #1")
	require.Contains(t, reply.Text, "(paused)")
	require.Contains(t, reply.Text, "job #2")
	require.Contains(t, reply.Text, "← active")
}

func TestTaskLifecycle(t *testing.T) {
	store := storage.NewMemoryStore()
	e := newTestEngine(store)

	send(t, e, "start job Smith Roof")
	reply := send(t, e, "add task order shingles")
	require.Contains(t, reply.Text, "Task #1")
	require.Contains(t, reply.Text, "job #1")

	reply = send(t, e, "list tasks")
	require.Contains(t, reply.Text, "order shingles")

	reply = send(t, e, "done task 1")
	require.Contains(t, reply.Text, "done")

	reply = send(t, e, "list tasks")
	require.Contains(t, reply.Text, "Nothing on the list")
}
