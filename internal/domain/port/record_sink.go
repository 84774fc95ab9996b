package port

import (
	"context"

	"sat-detect/internal/domain/entity"
)

// RecordSink получатель готовых записей
type RecordSink interface {
	// Write сохраняет записи результата; вызывается только после успешного сканирования
	Write(ctx context.Context, result *entity.PredictionResult) error
}

// StagedWrite подготовленная, но ещё не опубликованная запись
type StagedWrite interface {
	// Commit публикует запись под итоговым именем
	Commit() error
	// Discard убирает запись, подготовленную или уже опубликованную
	Discard() error
}

// StagingSink файловый sink: готовит запись и публикует её только после
// успеха всех остальных sink
type StagingSink interface {
	RecordSink
	Stage(ctx context.Context, result *entity.PredictionResult) (StagedWrite, error)
}
