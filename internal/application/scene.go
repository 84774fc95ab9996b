package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sat-detect/internal/domain/entity"
)

// SceneService принимает снимки от пользователей бота и прогоняет их через конвейер
type SceneService struct {
	users     *UserService
	predictor *PredictionService
	workDir   string
}

// SceneOutput результат обработки присланного снимка.
// Все файлы лежат в Dir, который удаляет Cleanup.
type SceneOutput struct {
	Result      *entity.PredictionResult
	Dir         string
	CSVPath     string
	PreviewPath string
}

// NewSceneService создаёт сервис. workDir корень временных каталогов, пусто = os.TempDir().
func NewSceneService(users *UserService, predictor *PredictionService, workDir string) *SceneService {
	return &SceneService{
		users:     users,
		predictor: predictor,
		workDir:   workDir,
	}
}

// CheckFileName проверяет, что присланный файл можно обработать
func (s *SceneService) CheckFileName(name string) error {
	format, err := entity.FormatOf(name)
	if err != nil {
		return err
	}
	// продукт DIMAP это каталог данных рядом с .dim, одним файлом его не прислать
	if format != entity.FormatGeoTIFF {
		return fmt.Errorf("%w: %s needs its data directory, send a GeoTIFF", entity.ErrUnsupportedFormat, format)
	}
	return nil
}

// ProcessScene сохраняет файл во временный каталог и запускает конвейер
// с типом снимков пользователя. Пользователь возвращается в главное меню.
func (s *SceneService) ProcessScene(ctx context.Context, userID, chatID int64, name string, data io.Reader) (*SceneOutput, error) {
	if s.predictor == nil {
		return nil, errors.New("predictor is not configured")
	}
	if err := s.CheckFileName(name); err != nil {
		return nil, err
	}

	user, err := s.users.SetState(ctx, userID, chatID, entity.StateProcessing)
	if err != nil {
		return nil, err
	}
	defer s.users.SetState(context.WithoutCancel(ctx), userID, chatID, entity.StateMainMenu)

	dir, err := os.MkdirTemp(s.workDir, fmt.Sprintf("scene-%d-*", userID))
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	out := &SceneOutput{Dir: dir}

	path := filepath.Join(dir, filepath.Base(name))
	if err := saveFile(path, data); err != nil {
		s.Cleanup(out)
		return nil, err
	}

	result, err := s.predictor.Predict(ctx, PredictRequest{
		Path:      path,
		ImageType: user.ImageType,
		OutputDir: dir,
	})
	if err != nil {
		s.Cleanup(out)
		return nil, err
	}

	out.Result = result
	out.PreviewPath = result.PreviewPath
	if csvPath := result.OutputFile(entity.SuffixCSV); fileExists(csvPath) {
		out.CSVPath = csvPath
	}
	return out, nil
}

// Cleanup удаляет временный каталог
func (s *SceneService) Cleanup(out *SceneOutput) error {
	if out == nil || out.Dir == "" {
		return nil
	}
	return os.RemoveAll(out.Dir)
}

func saveFile(path string, data io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
