package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phamduchanh/docvec-be/types"
)

func newTestTaskService(t *testing.T, vision VisionService, pages []string) *TaskService {
	t.Helper()
	docs, _ := newTestDocumentService(t, &fakeRenderer{pages: pages}, vision)
	svc := NewTaskService(zap.NewNop(), docs, nil, 2, time.Hour)
	t.Cleanup(svc.Close)
	return svc
}

func waitTerminal(t *testing.T, svc *TaskService, id string) types.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := svc.Get(id)
		require.NoError(t, err)
		if task.Status.Terminal() {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal status")
	return types.Task{}
}

func TestTaskLifecycleSucceeds(t *testing.T) {
	boxA := box(10, 10, 100, 20)
	vision := &docVision{
		layouts: map[string][]LayoutRegion{
			"p0.png": {{Kind: types.RegionKindText, BBox: boxA, Confidence: 0.9}},
		},
		texts: map[types.BBox]string{boxA: "content"},
	}
	svc := newTestTaskService(t, vision, []string{"p0.png"})

	id, err := svc.Submit(tempPDF(t), types.ProcessOptions{Collection: "docs"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	task := waitTerminal(t, svc, id)
	assert.Equal(t, types.TaskStatusSucceeded, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, 1, task.Result.TotalPages)
	assert.Empty(t, task.Error)
	assert.NotZero(t, task.FinishedAt)
}

func TestTaskLifecycleFails(t *testing.T) {
	svc := newTestTaskService(t, &docVision{}, []string{"p0.png"})

	// Missing source file fails during validation.
	id, err := svc.Submit("/nonexistent/broken.pdf", types.ProcessOptions{Collection: "docs"})
	require.NoError(t, err)

	task := waitTerminal(t, svc, id)
	assert.Equal(t, types.TaskStatusFailed, task.Status)
	assert.Nil(t, task.Result)
	assert.NotEmpty(t, task.Error)
}

func TestTaskUnknownID(t *testing.T) {
	svc := newTestTaskService(t, &docVision{}, nil)

	_, err := svc.Get("no-such-task")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, svc.Cancel("no-such-task"), types.ErrNotFound)
	assert.ErrorIs(t, svc.Clear("no-such-task"), types.ErrNotFound)
}

func TestTaskListNewestFirst(t *testing.T) {
	svc := newTestTaskService(t, &docVision{}, []string{"p0.png"})

	first, err := svc.Submit("/nonexistent/a.pdf", types.ProcessOptions{Collection: "docs"})
	require.NoError(t, err)
	waitTerminal(t, svc, first)

	// A later CreatedAt second needs a visibly later timestamp.
	time.Sleep(1100 * time.Millisecond)
	second, err := svc.Submit("/nonexistent/b.pdf", types.ProcessOptions{Collection: "docs"})
	require.NoError(t, err)
	waitTerminal(t, svc, second)

	tasks := svc.List()
	require.Len(t, tasks, 2)
	assert.Equal(t, second, tasks[0].ID)
	assert.Equal(t, first, tasks[1].ID)
}

func TestTaskClearOnlyTerminal(t *testing.T) {
	svc := newTestTaskService(t, &docVision{}, []string{"p0.png"})

	id, err := svc.Submit("/nonexistent/a.pdf", types.ProcessOptions{Collection: "docs"})
	require.NoError(t, err)
	waitTerminal(t, svc, id)

	require.NoError(t, svc.Clear(id))
	_, err = svc.Get(id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTaskSubscribeReceivesEvents(t *testing.T) {
	svc := newTestTaskService(t, &docVision{}, []string{"p0.png"})

	events, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	id, err := svc.Submit("/nonexistent/a.pdf", types.ProcessOptions{Collection: "docs"})
	require.NoError(t, err)
	waitTerminal(t, svc, id)

	var statuses []types.TaskStatus
	timeout := time.After(2 * time.Second)
	for len(statuses) < 3 {
		select {
		case event := <-events:
			if event.TaskID == id && event.Stage == "" {
				statuses = append(statuses, event.Status)
			}
		case <-timeout:
			t.Fatalf("only saw %v", statuses)
		}
	}
	assert.Equal(t, types.TaskStatusQueued, statuses[0])
	assert.Equal(t, types.TaskStatusRunning, statuses[1])
	assert.Equal(t, types.TaskStatusFailed, statuses[2])
}

func TestTaskCancelBeforeRun(t *testing.T) {
	// A single worker busy with a slow-failing task keeps the second task
	// queued long enough to cancel it.
	docs, _ := newTestDocumentService(t, &fakeRenderer{pages: []string{"p0.png"}}, &docVision{})
	svc := NewTaskService(zap.NewNop(), docs, nil, 1, time.Hour)
	t.Cleanup(svc.Close)

	blocker, err := svc.Submit("/nonexistent/slow.pdf", types.ProcessOptions{Collection: "docs"})
	require.NoError(t, err)
	victim, err := svc.Submit("/nonexistent/victim.pdf", types.ProcessOptions{Collection: "docs"})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(victim))

	waitTerminal(t, svc, blocker)
	task := waitTerminal(t, svc, victim)
	assert.Equal(t, types.TaskStatusFailed, task.Status)
}
