package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // регистрация драйвера sqlite3

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
)

// SQLiteStore хранит прогоны с детекциями и пользователей бота в одном файле SQLite
type SQLiteStore struct {
	db *sql.DB
}

// RunSummary строка таблицы runs
type RunSummary struct {
	ID         int64
	Source     string
	Basename   string
	CreatedAt  time.Time
	Width      int
	Height     int
	Tiles      int
	Extent     entity.Record
	Detections int
}

// NewSQLiteStore открывает базу и создаёт таблицы
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// createTables создаёт таблицы, если их ещё нет
func createTables(db *sql.DB) error {
	createRunsTable := `
    CREATE TABLE IF NOT EXISTS runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source TEXT NOT NULL,
        basename TEXT NOT NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        width INTEGER NOT NULL,
        height INTEGER NOT NULL,
        tiles INTEGER NOT NULL,
        ul_a REAL,
        ul_b REAL,
        br_a REAL,
        br_b REAL,
        utm_fallback INTEGER NOT NULL DEFAULT 0,
        warning TEXT
    );
    `

	createDetectionsTable := `
    CREATE TABLE IF NOT EXISTS detections (
        run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
        seq INTEGER NOT NULL,
        lon REAL NOT NULL,
        lat REAL NOT NULL,
        width REAL NOT NULL,
        height REAL NOT NULL,
        score REAL NOT NULL,
        label INTEGER NOT NULL,
        utm_fallback INTEGER NOT NULL DEFAULT 0,
        warning TEXT,
        PRIMARY KEY (run_id, seq)
    );
    CREATE INDEX IF NOT EXISTS idx_detections_location ON detections(lat, lon);
    `

	createUsersTable := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY,
        chat_id INTEGER NOT NULL,
        state TEXT NOT NULL,
        image_type TEXT NOT NULL
    );
    `

	if _, err := db.Exec(createRunsTable); err != nil {
		return fmt.Errorf("error creating runs table: %w", err)
	}
	if _, err := db.Exec(createDetectionsTable); err != nil {
		return fmt.Errorf("error creating detections table: %w", err)
	}
	if _, err := db.Exec(createUsersTable); err != nil {
		return fmt.Errorf("error creating users table: %w", err)
	}
	return nil
}

// Close закрывает базу
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write сохраняет прогон и все его детекции в одной транзакции
func (s *SQLiteStore) Write(ctx context.Context, result *entity.PredictionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var ulA, ulB, brA, brB sql.NullFloat64
	var runFallback bool
	var runWarning sql.NullString
	if extent, ok := result.Extent(); ok {
		ulA = sql.NullFloat64{Float64: extent.A, Valid: true}
		ulB = sql.NullFloat64{Float64: extent.B, Valid: true}
		brA = sql.NullFloat64{Float64: extent.A2, Valid: true}
		brB = sql.NullFloat64{Float64: extent.B2, Valid: true}
		runFallback = extent.UTMFallback
		runWarning = nullString(extent.Warning)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (source, basename, created_at, width, height, tiles, ul_a, ul_b, br_a, br_b, utm_fallback, warning)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Source, result.Basename, time.Now().UTC(), result.Info.Width, result.Info.Height, result.Tiles,
		ulA, ulB, brA, brB, runFallback, runWarning,
	)
	if err != nil {
		return fmt.Errorf("error inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error getting run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO detections (run_id, seq, lon, lat, width, height, score, label, utm_fallback, warning)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for seq, r := range result.Points() {
		_, err := stmt.ExecContext(ctx, runID, seq, r.A, r.B, r.Width, r.Height, float64(r.Score), r.Label,
			r.UTMFallback, nullString(r.Warning))
		if err != nil {
			return fmt.Errorf("error inserting detection %d: %w", seq, err)
		}
	}

	return tx.Commit()
}

// Runs возвращает прогоны, новые первыми
func (s *SQLiteStore) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT r.id, r.source, r.basename, r.created_at, r.width, r.height, r.tiles,
               r.ul_a, r.ul_b, r.br_a, r.br_b, r.utm_fallback, r.warning,
               (SELECT COUNT(*) FROM detections d WHERE d.run_id = r.id)
        FROM runs r ORDER BY r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var ulA, ulB, brA, brB sql.NullFloat64
		var warning sql.NullString
		err := rows.Scan(&run.ID, &run.Source, &run.Basename, &run.CreatedAt, &run.Width, &run.Height, &run.Tiles,
			&ulA, &ulB, &brA, &brB, &run.Extent.UTMFallback, &warning, &run.Detections)
		if err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		run.Extent.Kind = entity.RecordExtent
		run.Extent.A, run.Extent.B = ulA.Float64, ulB.Float64
		run.Extent.A2, run.Extent.B2 = brA.Float64, brB.Float64
		run.Extent.Warning = warning.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Detections возвращает точки прогона в исходном порядке
func (s *SQLiteStore) Detections(ctx context.Context, runID int64) ([]entity.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT lon, lat, width, height, score, label, utm_fallback, warning
        FROM detections WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying detections: %w", err)
	}
	defer rows.Close()

	var records []entity.Record
	for rows.Next() {
		r := entity.Record{Kind: entity.RecordPoint}
		var score float64
		var warning sql.NullString
		if err := rows.Scan(&r.A, &r.B, &r.Width, &r.Height, &score, &r.Label, &r.UTMFallback, &warning); err != nil {
			return nil, fmt.Errorf("error scanning detection: %w", err)
		}
		r.Score = float32(score)
		r.Warning = warning.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// Get возвращает пользователя по ID, создаёт нового если не найден
func (s *SQLiteStore) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	user := &entity.User{ID: userID}
	var state, imageType string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, state, image_type FROM users WHERE id = ?`, userID,
	).Scan(&user.ChatID, &state, &imageType)
	switch {
	case err == sql.ErrNoRows:
		user = entity.NewUser(userID, chatID)
		if err := s.Save(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	case err != nil:
		return nil, fmt.Errorf("error querying user: %w", err)
	}

	user.State = entity.UserState(state)
	user.ImageType = entity.ImageType(imageType)
	return user, nil
}

// Save сохраняет состояние пользователя
func (s *SQLiteStore) Save(ctx context.Context, user *entity.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, chat_id, state, image_type) VALUES (?, ?, ?, ?)`,
		user.ID, user.ChatID, string(user.State), string(user.ImageType))
	if err != nil {
		return fmt.Errorf("error saving user: %w", err)
	}
	return nil
}

// UpdateState обновляет состояние пользователя
func (s *SQLiteStore) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET state = ? WHERE id = ?`, string(state), userID); err != nil {
		return fmt.Errorf("error updating user state: %w", err)
	}
	return nil
}

// UpdateImageType обновляет тип снимков пользователя
func (s *SQLiteStore) UpdateImageType(ctx context.Context, userID int64, imageType entity.ImageType) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET image_type = ? WHERE id = ?`, string(imageType), userID); err != nil {
		return fmt.Errorf("error updating user image type: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ port.RecordSink     = (*SQLiteStore)(nil)
	_ port.UserRepository = (*SQLiteStore)(nil)
)
