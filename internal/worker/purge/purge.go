// Package purge はソフトデリート済みデータの物理削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過した削除済みの立替と精算を
// 定期バッチで物理削除する。精算にリンク済みの立替は精算金額の根拠として
// 保持期間に関わらず削除しない。
package purge

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tally/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PurgeJob は保持期間を超過したソフトデリート済み行の物理削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type PurgeJob struct {
	db            Executor
	logger        *slog.Logger
	collector     metrics.MetricsCollector
	RetentionDays int // 削除済み行の保持日数（デフォルト: 30）
}

// NewPurgeJob は新しいPurgeJobを生成する。
// デフォルトの保持日数は30日。
func NewPurgeJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *PurgeJob {
	return &PurgeJob{
		db:            db,
		logger:        logger,
		collector:     collector,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過したソフトデリート済み行を物理削除する。
// deleted_atがRetentionDays日前より古い立替と精算をDELETEする。
// 精算にリンク済みの立替（settlement_idが非NULL）は削除しない。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *PurgeJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	disbQuery := `DELETE FROM disbursements
		WHERE deleted_at IS NOT NULL
		  AND deleted_at < now() - $1::interval
		  AND settlement_id IS NULL`
	disbResult, err := j.db.ExecContext(ctx, disbQuery, interval)
	if err != nil {
		j.logger.Error("立替パージジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("立替パージの実行に失敗: %w", err)
	}

	disbPurged, err := disbResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("立替の削除件数の取得に失敗: %w", err)
	}

	// 精算はリンクされた立替の参照先になるため、削除済みかつ保持期限超過のもののみ。
	// 立替側のsettlement_id参照を壊さないよう、参照されている行は残す
	settleQuery := `DELETE FROM settlements
		WHERE deleted_at IS NOT NULL
		  AND deleted_at < now() - $1::interval
		  AND NOT EXISTS (
			SELECT 1 FROM disbursements d WHERE d.settlement_id = settlements.id
		  )`
	settleResult, err := j.db.ExecContext(ctx, settleQuery, interval)
	if err != nil {
		j.logger.Error("精算パージジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("精算パージの実行に失敗: %w", err)
	}

	settlePurged, err := settleResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("精算の削除件数の取得に失敗: %w", err)
	}

	if j.collector != nil {
		j.collector.RecordPurgedRows(int(disbPurged + settlePurged))
	}

	duration := time.Since(start)
	j.logger.Info("パージジョブが完了しました",
		slog.Int64("disbursements_purged", disbPurged),
		slog.Int64("settlements_purged", settlePurged),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunPeriodically は指定間隔でRunを繰り返し実行する。
// コンテキストのキャンセルで停止する。起動直後に1回実行する。
func (j *PurgeJob) RunPeriodically(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("パージジョブの初回実行に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("パージジョブの実行に失敗しました", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return
		}
	}
}
