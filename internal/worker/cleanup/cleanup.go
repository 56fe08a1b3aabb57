// Package cleanup は期限切れセッションの削除ジョブを提供する。
// セッションは発行時に有効期限が固定されるため、期限を過ぎた行は認証に使われず残り続ける。
// `todoman cleanup` サブコマンドから1回実行する。定期実行はcronなど外部に任せる。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredSessionDeleter は期限切れセッションを削除し、削除件数を返す。
// repository.SessionRepositoryが満たす。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanedRecorder は削除件数を記録する。metrics.Collectorが満たす。
type CleanedRecorder interface {
	RecordSessionsCleaned(count int64)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type SessionCleanupJob struct {
	sessions ExpiredSessionDeleter
	recorder CleanedRecorder
	logger   *slog.Logger
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。recorderはnilでもよい。
func NewSessionCleanupJob(sessions ExpiredSessionDeleter, recorder CleanedRecorder, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
	}
}

// Run は期限切れセッションを削除し、削除件数を返す。
func (j *SessionCleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsCleaned(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return deletedCount, nil
}

