package ingestion

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
)

type memJobRepo struct {
	jobs   map[string]*entity.IngestionJob
	nextID int
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*entity.IngestionJob{}}
}

func (r *memJobRepo) snapshot() map[string]*entity.IngestionJob {
	snap := make(map[string]*entity.IngestionJob, len(r.jobs))
	for id, j := range r.jobs {
		cp := *j
		snap[id] = &cp
	}
	return snap
}

func (r *memJobRepo) restore(snap map[string]*entity.IngestionJob) {
	r.jobs = snap
}

func (r *memJobRepo) Create(_ context.Context, job *entity.IngestionJob) error {
	if job.ID == "" {
		r.nextID++
		job.ID = fmt.Sprintf("job-%d", r.nextID)
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*entity.IngestionJob, error) {
	if j, ok := r.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (r *memJobRepo) Update(_ context.Context, job *entity.IngestionJob) error {
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) Delete(_ context.Context, id string) error {
	delete(r.jobs, id)
	return nil
}

func (r *memJobRepo) ListByTenant(context.Context, string, *repository.JobFilter, repository.Pagination) (*repository.PagedResult[*entity.IngestionJob], error) {
	return nil, nil
}

func (r *memJobRepo) GetByIdempotencyKey(context.Context, string) (*entity.IngestionJob, error) {
	return nil, nil
}

func (r *memJobRepo) UpdateStatus(_ context.Context, id string, status entity.JobStatus) error {
	if j, ok := r.jobs[id]; ok {
		j.Status = status
	}
	return nil
}

func (r *memJobRepo) UpdateProgress(_ context.Context, id string, progress int) error {
	if j, ok := r.jobs[id]; ok {
		j.Progress = progress
	}
	return nil
}

func (r *memJobRepo) GetPendingJobs(context.Context, int) ([]*entity.IngestionJob, error) {
	return nil, nil
}

func (r *memJobRepo) GetRunningJobs(context.Context) ([]*entity.IngestionJob, error) {
	return nil, nil
}

func (r *memJobRepo) GetFailedJobs(context.Context, int, int) ([]*entity.IngestionJob, error) {
	return nil, nil
}

func (r *memJobRepo) GetJobStats(context.Context, string) (*repository.JobStats, error) {
	return nil, nil
}

// rollbackTx 模拟数据库事务：回调出错时恢复作业仓储到事务前的快照
type rollbackTx struct {
	jobs *memJobRepo
}

func (t *rollbackTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	snap := t.jobs.snapshot()
	if err := fn(ctx); err != nil {
		t.jobs.restore(snap)
		return err
	}
	return nil
}

type recordingTenantCtx struct {
	tenants []string
}

func (c *recordingTenantCtx) SetTenant(_ context.Context, tenantID string) error {
	c.tenants = append(c.tenants, tenantID)
	return nil
}

func (c *recordingTenantCtx) ClearTenant(context.Context) error { return nil }

var (
	_ repository.Transactor           = (*rollbackTx)(nil)
	_ repository.TenantContextManager = (*recordingTenantCtx)(nil)
	_ repository.JobRepository        = (*memJobRepo)(nil)
)

func newTestJobRunner(t *testing.T) (*JobRunner, *memJobRepo, *recordingTenantCtx, string) {
	t.Helper()
	pipeline, _, _, dir := newTestPipeline(t)
	jobs := newMemJobRepo()
	tenants := &recordingTenantCtx{}
	return NewJobRunner(&rollbackTx{jobs: jobs}, tenants, jobs, pipeline), jobs, tenants, dir
}

func queuedJob(t *testing.T, jobs *memJobRepo, tenantID string) *entity.IngestionJob {
	t.Helper()
	job := entity.NewIngestionJob(tenantID, entity.JobTypeIngest, nil)
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

func TestJobRunnerCompletesJob(t *testing.T) {
	runner, jobs, tenants, dir := newTestJobRunner(t)
	path := writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)
	job := queuedJob(t, jobs, "t1")

	require.NoError(t, runner.Run(context.Background(), job.ID, "t1", path))

	stored, _ := jobs.GetByID(context.Background(), job.ID)
	require.NotNil(t, stored)
	assert.Equal(t, entity.JobStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.Equal(t, 3, stored.ChunksIndexed)
	assert.NotEmpty(t, stored.OutputResult)
	assert.Contains(t, tenants.tenants, "t1")
}

func TestJobRunnerPersistsFailureAfterRollback(t *testing.T) {
	runner, jobs, _, dir := newTestJobRunner(t)
	path := writeSOP(t, dir, "broken_v1.pdf", "not a real pdf")
	job := queuedJob(t, jobs, "t1")

	err := runner.Run(context.Background(), job.ID, "t1", path)
	require.Error(t, err)

	// 主事务回滚后失败状态仍然落库，作业不得停留在排队状态
	stored, _ := jobs.GetByID(context.Background(), job.ID)
	require.NotNil(t, stored)
	assert.Equal(t, entity.JobStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
	assert.NotNil(t, stored.CompletedAt)
}

func TestJobRunnerSkipsCancelledJob(t *testing.T) {
	runner, jobs, _, dir := newTestJobRunner(t)
	path := writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)
	job := queuedJob(t, jobs, "t1")
	require.NoError(t, jobs.UpdateStatus(context.Background(), job.ID, entity.JobStatusCancelled))

	require.NoError(t, runner.Run(context.Background(), job.ID, "t1", path))

	stored, _ := jobs.GetByID(context.Background(), job.ID)
	assert.Equal(t, entity.JobStatusCancelled, stored.Status)
	assert.Nil(t, stored.StartedAt)
}

func TestJobRunnerMissingJob(t *testing.T) {
	runner, _, _, dir := newTestJobRunner(t)
	path := writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)

	err := runner.Run(context.Background(), "nope", "t1", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}
