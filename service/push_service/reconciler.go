package push_service

import (
	"context"
	"fleet-push-service/models"
)

// InvalidTokens returns the tokens whose outcome marks them permanently invalid.
// Transient failures never qualify.
func InvalidTokens(tokens []string, outcomes []models.DeliveryOutcome) map[string]struct{} {
	invalid := make(map[string]struct{})
	for i, outcome := range outcomes {
		if i >= len(tokens) {
			break
		}
		if !outcome.Success && outcome.ErrorKind.Permanent() {
			invalid[tokens[i]] = struct{}{}
		}
	}
	return invalid
}

// Reconciler removes permanently invalid tokens after a delivery attempt.
type Reconciler struct {
	pruner TokenPruner
}

// NewReconciler 创建失效令牌清理器
func NewReconciler(pruner TokenPruner) *Reconciler {
	return &Reconciler{pruner: pruner}
}

// Reconcile prunes the permanently invalid tokens of one batch with a single
// registry call and returns how many were removed.
func (r *Reconciler) Reconcile(ctx context.Context, identity string, tokens []string, outcomes []models.DeliveryOutcome) (int, error) {
	invalid := InvalidTokens(tokens, outcomes)
	if len(invalid) == 0 {
		return 0, nil
	}
	if err := r.pruner.Prune(ctx, identity, invalid); err != nil {
		return 0, err
	}
	return len(invalid), nil
}
