package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"automl_studio/entity"
)

// memStore Store 的内存实现，runner 测试不用碰数据库。
type memStore struct {
	mu       sync.Mutex
	projects map[string]*entity.Project
}

func newMemStore(projects ...*entity.Project) *memStore {
	s := &memStore{projects: make(map[string]*entity.Project)}
	for _, p := range projects {
		clone := *p
		s.projects[p.ID] = &clone
	}
	return s
}

func (s *memStore) FindByID(_ context.Context, id string) (*entity.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *memStore) Update(_ context.Context, project *entity.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *project
	s.projects[project.ID] = &clone
	return nil
}

func (s *memStore) get(t *testing.T, id string) *entity.Project {
	t.Helper()
	p, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// fakeProcessor 可编程的阶段处理器。
type fakeProcessor struct {
	stage entity.Stage
	fn    func(ctx context.Context, project *entity.Project) (json.RawMessage, error)
}

func (p *fakeProcessor) Stage() entity.Stage { return p.stage }

func (p *fakeProcessor) Process(ctx context.Context, project *entity.Project) (json.RawMessage, error) {
	return p.fn(ctx, project)
}

func newTestRunner(store Store, requireApproval bool) *Runner {
	return NewRunner(store, NewMemoryLocker(), RunnerConfig{
		StageTimeout:    5 * time.Second,
		RequireApproval: requireApproval,
	})
}

func analyzableProject(id string) *entity.Project {
	return &entity.Project{ID: id, Status: entity.StatusDatasetLinked, DatasetID: strptr("ds-1")}
}

func waitForStatus(t *testing.T, store *memStore, id string, want entity.Status) *entity.Project {
	t.Helper()
	assert.Eventually(t, func() bool {
		return store.get(t, id).Status == want
	}, 3*time.Second, 10*time.Millisecond, "waiting for status %s", want)
	return store.get(t, id)
}

func TestRunnerSuccessPath(t *testing.T) {
	store := newMemStore(analyzableProject("p1"))
	runner := newTestRunner(store, false)

	payload := json.RawMessage(`{"quality_score":90}`)
	proc := &fakeProcessor{stage: entity.StageAnalysis, fn: func(context.Context, *entity.Project) (json.RawMessage, error) {
		return payload, nil
	}}

	require.NoError(t, runner.Run(context.Background(), "p1", proc))

	p := waitForStatus(t, store, "p1", entity.StatusAnalyzed)
	assert.JSONEq(t, string(payload), string(p.AnalysisResult))

	events := p.Events()
	require.Len(t, events, 2)
	assert.Equal(t, entity.EventStarted, events[0].Status)
	assert.Equal(t, entity.EventComplete, events[1].Status)
	assert.False(t, events[1].Timestamp.Before(events[0].Timestamp))
	assert.Equal(t, p.Status, DeriveStatus(p))
}

func TestRunnerRejectsConcurrentStart(t *testing.T) {
	store := newMemStore(analyzableProject("p1"))
	runner := newTestRunner(store, false)

	block := make(chan struct{})
	proc := &fakeProcessor{stage: entity.StageAnalysis, fn: func(ctx context.Context, _ *entity.Project) (json.RawMessage, error) {
		<-block
		return json.RawMessage(`{}`), nil
	}}

	require.NoError(t, runner.Run(context.Background(), "p1", proc))

	// 执行期间所有启动请求都被锁挡掉，包括别的阶段
	err := runner.Run(context.Background(), "p1", proc)
	assert.ErrorIs(t, err, ErrStageAlreadyRunning)
	assert.True(t, runner.Locker().IsHeld(context.Background(), "p1"))

	close(block)
	waitForStatus(t, store, "p1", entity.StatusAnalyzed)

	assert.Eventually(t, func() bool {
		return !runner.Locker().IsHeld(context.Background(), "p1")
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRunnerProcessorError(t *testing.T) {
	store := newMemStore(analyzableProject("p1"))
	runner := newTestRunner(store, false)

	proc := &fakeProcessor{stage: entity.StageAnalysis, fn: func(context.Context, *entity.Project) (json.RawMessage, error) {
		return nil, errors.New("file is corrupt")
	}}

	require.NoError(t, runner.Run(context.Background(), "p1", proc))

	p := waitForStatus(t, store, "p1", entity.StatusAnalysisFailed)
	events := p.Events()
	require.Len(t, events, 2)
	assert.Equal(t, entity.EventError, events[1].Status)
	assert.Contains(t, events[1].Error, "file is corrupt")
	assert.Equal(t, p.Status, DeriveStatus(p))

	// 失败后允许重试
	retry := &fakeProcessor{stage: entity.StageAnalysis, fn: func(context.Context, *entity.Project) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}}
	require.NoError(t, runner.Run(context.Background(), "p1", retry))
	waitForStatus(t, store, "p1", entity.StatusAnalyzed)
}

func TestRunnerKeepsPartialPayloadOnError(t *testing.T) {
	store := newMemStore(&entity.Project{
		ID:             "p1",
		Status:         entity.StatusPreprocessed,
		DatasetID:      strptr("ds-1"),
		ModelSelection: selectionJSON(t, "decision_tree"),
	})
	runner := newTestRunner(store, false)

	partial := json.RawMessage(`{"models_trained":3,"models_successful":0}`)
	proc := &fakeProcessor{stage: entity.StageTraining, fn: func(context.Context, *entity.Project) (json.RawMessage, error) {
		return partial, ErrAllModelsFailed
	}}

	require.NoError(t, runner.Run(context.Background(), "p1", proc))

	p := waitForStatus(t, store, "p1", entity.StatusTrainingFailed)
	assert.JSONEq(t, string(partial), string(p.TrainingResult))
}

func TestRunnerTimeout(t *testing.T) {
	store := newMemStore(analyzableProject("p1"))
	runner := NewRunner(store, NewMemoryLocker(), RunnerConfig{StageTimeout: 50 * time.Millisecond})

	proc := &fakeProcessor{stage: entity.StageAnalysis, fn: func(ctx context.Context, _ *entity.Project) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	require.NoError(t, runner.Run(context.Background(), "p1", proc))

	p := waitForStatus(t, store, "p1", entity.StatusAnalysisFailed)
	events := p.Events()
	require.Len(t, events, 2)
	assert.Contains(t, events[1].Error, "budget")
}

func TestRunnerApprovalGate(t *testing.T) {
	store := newMemStore(analyzableProject("p1"))
	runner := newTestRunner(store, true)

	payload := json.RawMessage(`{"quality_score":85}`)
	proc := &fakeProcessor{stage: entity.StageAnalysis, fn: func(context.Context, *entity.Project) (json.RawMessage, error) {
		return payload, nil
	}}

	require.NoError(t, runner.Run(context.Background(), "p1", proc))

	p := waitForStatus(t, store, "p1", entity.StatusAnalysisAwaiting)
	assert.Empty(t, p.AnalysisResult, "result must not apply before approval")
	assert.JSONEq(t, string(payload), string(p.PendingResult))
	assert.Equal(t, p.Status, DeriveStatus(p))

	require.NoError(t, runner.Approve(context.Background(), "p1", entity.StageAnalysis))

	p = store.get(t, "p1")
	assert.Equal(t, entity.StatusAnalyzed, p.Status)
	assert.JSONEq(t, string(payload), string(p.AnalysisResult))
	assert.Empty(t, p.PendingResult)
	events := p.Events()
	assert.Equal(t, entity.EventApproved, events[len(events)-1].Status)
	assert.Equal(t, p.Status, DeriveStatus(p))

	// 二次审批没有待审内容
	err := runner.Approve(context.Background(), "p1", entity.StageAnalysis)
	assert.ErrorIs(t, err, ErrNotAwaitingApproval)
}

func TestRunnerRejectReturnsToReady(t *testing.T) {
	store := newMemStore(analyzableProject("p1"))
	runner := newTestRunner(store, true)

	proc := &fakeProcessor{stage: entity.StageAnalysis, fn: func(context.Context, *entity.Project) (json.RawMessage, error) {
		return json.RawMessage(`{"quality_score":40}`), nil
	}}

	require.NoError(t, runner.Run(context.Background(), "p1", proc))
	waitForStatus(t, store, "p1", entity.StatusAnalysisAwaiting)

	require.NoError(t, runner.Reject(context.Background(), "p1", entity.StageAnalysis, "quality too low"))

	p := store.get(t, "p1")
	assert.Equal(t, entity.StatusDatasetLinked, p.Status)
	assert.Empty(t, p.AnalysisResult)
	assert.Empty(t, p.PendingResult)
	events := p.Events()
	last := events[len(events)-1]
	assert.Equal(t, entity.EventRejected, last.Status)
	assert.Contains(t, last.Message, "quality too low")
	assert.Equal(t, p.Status, DeriveStatus(p))

	// 拒绝后可以重跑
	require.NoError(t, runner.Run(context.Background(), "p1", proc))
	waitForStatus(t, store, "p1", entity.StatusAnalysisAwaiting)
}

func TestRunSyncDoesNotAdvanceStatus(t *testing.T) {
	store := newMemStore(&entity.Project{ID: "p1", Status: entity.StatusPreprocessed, DatasetID: strptr("ds-1")})
	runner := newTestRunner(store, false)

	payload := json.RawMessage(`{"task_type":"classification"}`)
	proc := &fakeProcessor{stage: entity.StageModelSelection, fn: func(context.Context, *entity.Project) (json.RawMessage, error) {
		return payload, nil
	}}

	got, err := runner.RunSync(context.Background(), "p1", proc)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))

	p := store.get(t, "p1")
	assert.Equal(t, entity.StatusPreprocessed, p.Status)
	assert.JSONEq(t, string(payload), string(p.ModelSelection))
	assert.Equal(t, p.Status, DeriveStatus(p))

	// 同步阶段可以重复执行
	_, err = runner.RunSync(context.Background(), "p1", proc)
	assert.NoError(t, err)
}

func TestRunSyncErrorLeavesStatusUntouched(t *testing.T) {
	store := newMemStore(&entity.Project{ID: "p1", Status: entity.StatusPreprocessed, DatasetID: strptr("ds-1")})
	runner := newTestRunner(store, false)

	proc := &fakeProcessor{stage: entity.StageModelSelection, fn: func(context.Context, *entity.Project) (json.RawMessage, error) {
		return nil, errors.New("analysis result missing")
	}}

	_, err := runner.RunSync(context.Background(), "p1", proc)
	assert.ErrorIs(t, err, ErrProcessorFailed)

	p := store.get(t, "p1")
	assert.Equal(t, entity.StatusPreprocessed, p.Status)
	assert.Empty(t, p.ModelSelection)
	events := p.Events()
	assert.Equal(t, entity.EventError, events[len(events)-1].Status)
}

func TestMemoryLocker(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.TryAcquire(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, locker.IsHeld(ctx, "p1"))
	assert.False(t, locker.IsHeld(ctx, "p2"))

	_, err = locker.TryAcquire(ctx, "p1")
	assert.ErrorIs(t, err, ErrStageAlreadyRunning)

	release()
	release() // 幂等
	assert.False(t, locker.IsHeld(ctx, "p1"))

	release2, err := locker.TryAcquire(ctx, "p1")
	require.NoError(t, err)
	release2()
}
