package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB opens the SQLite database at path and creates the schema.
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var err error
	// the server and the training job share the file
	database, err = sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT NOT NULL,
        model_name VARCHAR(50),
        estimate REAL NOT NULL,
        inputs TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        model_name VARCHAR(50) NOT NULL,
        r2 REAL,
        rmse REAL,
        mae REAL,
        selected INTEGER DEFAULT 0,
        train_rows INTEGER,
        test_rows INTEGER,
        trained_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
    CREATE INDEX IF NOT EXISTS idx_training_log_run ON training_log(run_id);
    `

	if _, err = database.Exec(query); err != nil {
		database.Close()
		database = nil
		return err
	}
	return nil
}

// Ready reports whether InitDB has succeeded.
func Ready() bool {
	return database != nil
}

func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

type Prediction struct {
	RequestID string            `json:"request_id"`
	ModelName string            `json:"model_name"`
	Estimate  float64           `json:"estimate"`
	Inputs    map[string]string `json:"inputs,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func SavePrediction(p Prediction) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if p.RequestID == "" {
		return errors.New("request id required")
	}
	inputs, err := json.Marshal(p.Inputs)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err = database.Exec(`
        INSERT INTO predictions (request_id, model_name, estimate, inputs, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		p.RequestID, p.ModelName, p.Estimate, string(inputs), p.CreatedAt)
	return err
}

// RecentPredictions returns at most limit predictions, newest first.
func RecentPredictions(limit int) ([]Prediction, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Query(`
        SELECT request_id, model_name, estimate, inputs, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		var model, inputs sql.NullString
		if err := rows.Scan(&p.RequestID, &model, &p.Estimate, &inputs, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ModelName = model.String
		if inputs.Valid && inputs.String != "" {
			if err := json.Unmarshal([]byte(inputs.String), &p.Inputs); err != nil {
				return nil, err
			}
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

type TrainingLog struct {
	RunID     string    `json:"run_id"`
	ModelName string    `json:"model_name"`
	R2        float64   `json:"r2"`
	RMSE      float64   `json:"rmse"`
	MAE       float64   `json:"mae"`
	Selected  bool      `json:"selected"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	TrainedAt time.Time `json:"trained_at"`
}

// SaveTrainingRun stores every candidate of one run atomically.
func SaveTrainingRun(entries []TrainingLog) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := database.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
        INSERT INTO training_log (
            run_id, model_name, r2, rmse, mae, selected, train_rows, test_rows, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.RunID, e.ModelName, e.R2, e.RMSE, e.MAE, e.Selected, e.TrainRows, e.TestRows, e.TrainedAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadTrainingLog returns every recorded candidate, newest run first. SQLite
// stores a NaN score as NULL; it reads back as 0.
func LoadTrainingLog() ([]TrainingLog, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`
        SELECT run_id, model_name, IFNULL(r2, 0), IFNULL(rmse, 0), IFNULL(mae, 0),
               selected, train_rows, test_rows, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id ASC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.RunID, &log.ModelName, &log.R2, &log.RMSE, &log.MAE, &log.Selected,
			&log.TrainRows, &log.TestRows, &log.TrainedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
