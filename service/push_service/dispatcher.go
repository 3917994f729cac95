package push_service

import (
	"context"
	"fleet-push-service/models"
	"fleet-push-service/tool"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TokenResult 单个令牌的推送结果（令牌已脱敏）
type TokenResult struct {
	Token     string                   `json:"token"`
	Success   bool                     `json:"success"`
	ErrorKind models.DeliveryErrorKind `json:"errorKind"`
	Error     string                   `json:"error,omitempty"`
}

// DispatchReport 一次批量推送的汇总
type DispatchReport struct {
	Sent              int           `json:"sent"`
	Failed            int           `json:"failed"`
	InvalidRemoved    int           `json:"invalidRemoved"`
	PermanentFailures int           `json:"permanentFailures"`
	PruneError        string        `json:"pruneError,omitempty"`
	Results           []TokenResult `json:"results"`
	Duration          time.Duration `json:"duration"`
}

// TotalFailure reports a non-empty batch where no token succeeded.
func (r *DispatchReport) TotalFailure() bool {
	return r.Sent == 0 && r.Failed > 0
}

// AllPermanent reports whether every failed token was permanently invalid.
func (r *DispatchReport) AllPermanent() bool {
	return r.Failed > 0 && r.PermanentFailures == r.Failed
}

// TransientTotalFailure is a total failure with no permanently invalid token
// among the failures; HTTP callers surface it as a server error.
func (r *DispatchReport) TransientTotalFailure() bool {
	return r.TotalFailure() && r.PermanentFailures == 0
}

// Dispatcher fans one notification out to every token of an identity.
type Dispatcher struct {
	registry   *Registry
	transport  PushTransport
	reconciler *Reconciler
	timeout    time.Duration
	metrics    *Metrics
	log        *zap.Logger
}

// NewDispatcher 创建推送分发器
func NewDispatcher(registry *Registry, transport PushTransport, timeout time.Duration, metrics *Metrics, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		registry:   registry,
		transport:  transport,
		reconciler: NewReconciler(registry),
		timeout:    timeout,
		metrics:    metrics,
		log:        log.Named("dispatcher"),
	}
}

// Dispatch sends the notification to every registered token of identity with
// one transport call, then prunes the tokens reported permanently invalid.
// Per-token failures are part of the report, never an error.
func (d *Dispatcher) Dispatch(ctx context.Context, identity string, notification models.Notification, data map[string]string) (*DispatchReport, error) {
	startTime := time.Now()

	tokens, err := d.registry.Lookup(ctx, identity, "")
	if err != nil {
		d.metrics.observeDispatch("registry_error")
		return nil, err
	}
	if len(tokens) == 0 {
		d.metrics.observeDispatch("no_recipient")
		d.log.Debug("no tokens registered", zap.String("identity", tool.MaskIdentity(identity)))
		return nil, noRecipientError("no tokens registered for %s", NormalizeIdentity(identity))
	}

	outcomes, err := d.send(ctx, tokens, notification, data)
	if err != nil {
		d.metrics.observeDispatch("delivery_error")
		d.log.Error("multicast send failed", zap.String("identity", tool.MaskIdentity(identity)),
			zap.Int("tokens", len(tokens)), zap.Error(err))
		return nil, err
	}

	report := buildReport(tokens, outcomes)
	d.metrics.observeOutcomes(report)
	removed, err := d.reconciler.Reconcile(ctx, identity, tokens, outcomes)
	if err != nil {
		report.PruneError = err.Error()
		d.log.Warn("pruning invalid tokens failed", zap.String("identity", tool.MaskIdentity(identity)), zap.Error(err))
	}
	report.InvalidRemoved = removed
	report.Duration = time.Since(startTime)
	d.metrics.observePruned(removed)
	d.metrics.observeDispatch(dispatchResult(report))

	d.log.Info("notification dispatched",
		zap.String("identity", tool.MaskIdentity(identity)),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("invalidRemoved", report.InvalidRemoved),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// SendDirect sends to caller-supplied tokens. The registry is neither read nor pruned.
func (d *Dispatcher) SendDirect(ctx context.Context, tokens []string, notification models.Notification, data map[string]string) (*DispatchReport, error) {
	if len(tokens) == 0 {
		return nil, validationError("at least one token is required")
	}
	for _, token := range tokens {
		if token == "" {
			return nil, validationError("tokens must not be empty")
		}
	}
	startTime := time.Now()

	outcomes, err := d.send(ctx, tokens, notification, data)
	if err != nil {
		d.metrics.observeDispatch("delivery_error")
		return nil, err
	}
	report := buildReport(tokens, outcomes)
	d.metrics.observeOutcomes(report)
	report.Duration = time.Since(startTime)
	d.metrics.observeDispatch(dispatchResult(report))
	return report, nil
}

// send calls the transport once under the delivery timeout. Transport errors,
// timeouts and outcome slices that cannot be correlated with the batch all
// become DeliveryUnavailable.
func (d *Dispatcher) send(ctx context.Context, tokens []string, notification models.Notification, data map[string]string) ([]models.DeliveryOutcome, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	started := time.Now()
	outcomes, err := d.transport.SendMulticast(ctx, tokens, notification, data)
	d.metrics.observeLatency(started)
	if err != nil {
		return nil, deliveryUnavailable(d.transport.GetName()+" multicast failed", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, deliveryUnavailable(d.transport.GetName()+" multicast timed out", ctxErr)
	}
	if len(outcomes) != len(tokens) {
		return nil, deliveryUnavailable(
			fmt.Sprintf("%s returned %d outcomes for %d tokens", d.transport.GetName(), len(outcomes), len(tokens)), nil)
	}
	return outcomes, nil
}

func buildReport(tokens []string, outcomes []models.DeliveryOutcome) *DispatchReport {
	report := &DispatchReport{Results: make([]TokenResult, 0, len(tokens))}
	for i, outcome := range outcomes {
		result := TokenResult{
			Token:     tool.MaskToken(tokens[i]),
			Success:   outcome.Success,
			ErrorKind: outcome.ErrorKind,
			Error:     outcome.Message,
		}
		if outcome.Success {
			report.Sent++
			result.ErrorKind = models.DeliveryErrorNone
		} else {
			report.Failed++
			if result.ErrorKind == "" || result.ErrorKind == models.DeliveryErrorNone {
				result.ErrorKind = models.DeliveryErrorOther
			}
			if result.ErrorKind.Permanent() {
				report.PermanentFailures++
			}
		}
		report.Results = append(report.Results, result)
	}
	return report
}

func dispatchResult(report *DispatchReport) string {
	switch {
	case report.Failed == 0:
		return "delivered"
	case report.Sent == 0:
		return "failed"
	default:
		return "partial"
	}
}
