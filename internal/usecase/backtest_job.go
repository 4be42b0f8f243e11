package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"HackCap/internal/domain/models"
	"HackCap/pkg/logger"
	"HackCap/pkg/queue"
)

// BacktestJobType is the queue message type carrying a models.BacktestRequest.
const BacktestJobType = "backtest"

// BacktestJob runs queued backtest requests. Reports are published by the
// decision service.
type BacktestJob struct {
	svc *DecisionService
	log *logger.Logger
}

func NewBacktestJob(svc *DecisionService) *BacktestJob {
	return &BacktestJob{svc: svc, log: logger.Nop()}
}

func (j *BacktestJob) SetLogger(l *logger.Logger) {
	if l != nil {
		j.log = l
	}
}

func (j *BacktestJob) Name() string { return "backtest-runner" }
func (j *BacktestJob) Type() string { return BacktestJobType }

// Handle decodes and replays one request. A run that ends FAILED is reported,
// not retried; source errors are retried by the queue.
func (j *BacktestJob) Handle(ctx context.Context, payload []byte) error {
	req, err := queue.Decode[models.BacktestRequest](payload)
	if err != nil {
		return err
	}
	res, err := j.svc.Backtest(ctx, req)
	if err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
		}
		return err
	}
	if res.State != models.RunCompleted {
		j.log.Warn("queued backtest failed",
			logger.String("ticker", req.Ticker),
			logger.String("run_id", res.RunID),
			logger.String("state", string(res.State)),
			logger.Error(res.Err))
		return nil
	}
	j.log.Info("queued backtest completed",
		logger.String("ticker", req.Ticker),
		logger.String("run_id", res.RunID),
		logger.String("summary", res.Summary()))
	return nil
}

var _ queue.Job = (*BacktestJob)(nil)
