package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultInterval = 15 * time.Minute
	sweepTimeout    = 5 * time.Minute
)

// AutoCheckOuter は前日以前の未チェックアウトのセッションを締めます。
type AutoCheckOuter interface {
	AutoCheckOut(ctx context.Context) (int, error)
}

// AutoCheckOut は一定間隔で自動チェックアウトを実行するワーカーです。
type AutoCheckOut struct {
	svc      AutoCheckOuter
	interval time.Duration
	logger   logrus.FieldLogger
}

// NewAutoCheckOut は AutoCheckOut を生成します。interval が 0 以下の場合は 15 分です。
func NewAutoCheckOut(svc AutoCheckOuter, interval time.Duration, logger logrus.FieldLogger) *AutoCheckOut {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AutoCheckOut{
		svc:      svc,
		interval: interval,
		logger:   logger.WithField("worker", "auto_checkout"),
	}
}

// Run は起動直後に 1 回、その後は interval ごとに実行し、ctx がキャンセルされると戻ります。
func (w *AutoCheckOut) Run(ctx context.Context) error {
	w.logger.WithField("interval", w.interval.String()).Info("auto checkout worker started")

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("auto checkout worker stopped")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *AutoCheckOut) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	closed, err := w.svc.AutoCheckOut(sweepCtx)
	switch {
	case err != nil && ctx.Err() != nil:
		// シャットダウン中
	case err != nil:
		w.logger.WithError(err).Error("auto checkout failed")
	case closed > 0:
		w.logger.WithField("sessions", closed).Info("auto checked out sessions")
	default:
		w.logger.Debug("no open sessions to close")
	}
}
