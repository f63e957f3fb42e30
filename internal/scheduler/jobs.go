package scheduler

import (
	"context"

	"github.com/BerriAI/litellm-sub032/internal/metrics"
	"github.com/BerriAI/litellm-sub032/internal/policy"
)

// PolicyReloadJob refreshes the in-memory policy store from its source,
// so promotions and deletions performed by other gateway instances take
// effect here without a restart.
type PolicyReloadJob struct {
	Store   *policy.Store
	Metrics *metrics.Metrics
}

func (j *PolicyReloadJob) Name() string { return "policy_reload" }

func (j *PolicyReloadJob) Run(ctx context.Context) error {
	err := j.Store.Load(ctx)
	if j.Metrics != nil {
		j.Metrics.RecordReload(err)
		if err == nil {
			j.Metrics.SetActivePolicies(len(j.Store.PolicyNames()))
		}
	}
	return err
}
