package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/pkg/logger"
)

// JobRunner 在租户事务内执行入库作业并维护作业状态。
type JobRunner struct {
	tx       repository.Transactor
	tenants  repository.TenantContextManager
	jobs     repository.JobRepository
	pipeline *Pipeline
}

// NewJobRunner 创建作业执行器
func NewJobRunner(
	tx repository.Transactor,
	tenants repository.TenantContextManager,
	jobs repository.JobRepository,
	pipeline *Pipeline,
) *JobRunner {
	return &JobRunner{
		tx:       tx,
		tenants:  tenants,
		jobs:     jobs,
		pipeline: pipeline,
	}
}

// Run 执行一个入库作业。filename 为空时入库整个文档库。
// 返回非 nil 时调用方按消费重试/死信策略处理；失败状态已单独落库。
func (r *JobRunner) Run(ctx context.Context, jobID, tenantID, filename string) error {
	cancelled := false
	runErr := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.tenants.SetTenant(txCtx, tenantID); err != nil {
			return err
		}

		job, err := r.jobs.GetByID(txCtx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job not found: %s", jobID)
		}
		if job.Status == entity.JobStatusCancelled {
			cancelled = true
			return nil
		}

		job.Start()
		if err := r.jobs.Update(txCtx, job); err != nil {
			return err
		}
		_ = r.jobs.UpdateProgress(txCtx, jobID, 10)

		var results []*Result
		if filename == "" {
			results, err = r.pipeline.IngestLibrary(txCtx, tenantID)
		} else {
			var res *Result
			res, err = r.pipeline.IngestFile(txCtx, tenantID, filename)
			if res != nil {
				results = append(results, res)
			}
		}
		if err != nil {
			return err
		}
		_ = r.jobs.UpdateProgress(txCtx, jobID, 90)

		chunks := 0
		summaries := make([]map[string]interface{}, 0, len(results))
		for _, res := range results {
			chunks += res.ChunksIndexed
			item := map[string]interface{}{
				"chunks_indexed": res.ChunksIndexed,
				"skipped":        res.Skipped,
			}
			if res.Document != nil {
				item["document_id"] = res.Document.ID
				item["doc_name"] = res.Document.DocName
			}
			summaries = append(summaries, item)
		}
		resultJSON, _ := json.Marshal(map[string]interface{}{
			"documents":      summaries,
			"chunks_indexed": chunks,
		})

		job.Complete(resultJSON, chunks)
		return r.jobs.Update(txCtx, job)
	})
	if runErr == nil || cancelled {
		return nil
	}

	// 主事务已回滚，失败状态必须另起事务写入，
	// 否则重试耗尽进入死信后作业会永远停留在排队状态
	if err := r.markFailed(ctx, jobID, tenantID, runErr); err != nil {
		logger.Error(ctx, "failed to persist job failure", err, "job_id", jobID)
	}
	return runErr
}

func (r *JobRunner) markFailed(ctx context.Context, jobID, tenantID string, cause error) error {
	return r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.tenants.SetTenant(txCtx, tenantID); err != nil {
			return err
		}
		job, err := r.jobs.GetByID(txCtx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}
		job.Fail(cause.Error())
		return r.jobs.Update(txCtx, job)
	})
}
