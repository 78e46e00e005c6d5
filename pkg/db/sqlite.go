package db

// use sqlite https://modernc.org/sqlite/

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-errors/errors"
	_ "modernc.org/sqlite"

	"github.com/ellypaws/macrotune/pkg/logger"
)

const (
	// Memory opens a private in-memory database.
	Memory string = ":memory:"

	DefaultFile         string = "macrotune.sqlite"
	getCurrentMigration string = `PRAGMA user_version;`
	setCurrentMigration string = `PRAGMA user_version = ?;`
	setForeignKeyCheck  string = `PRAGMA foreign_keys = ON;`
)

var log = logger.New("db")

type Sqlite struct {
	*sql.DB
	context context.Context
}

type migration struct {
	migrationName  string
	migrationQuery string
}

var migrations = []migration{
	{migrationName: "create jobs table", migrationQuery: createJobs},
	{migrationName: "create jobs status index", migrationQuery: createJobsStatusIndex},
}

// sql statements
const (
	createJobs = `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		training_file TEXT NOT NULL DEFAULT '',
-- 		remote id of the uploaded training file
		file_id TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		fine_tuned_model TEXT NOT NULL DEFAULT '',
		trained_tokens INTEGER,
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)
	`

	createJobsStatusIndex = `
	CREATE INDEX IF NOT EXISTS jobs_status ON jobs (status)
	`
)

// New opens the database at path, creating the file and running migrations.
// Use Memory for a throwaway database.
func New(ctx context.Context, path string) (*Sqlite, error) {
	if path == "" {
		path = DefaultFile
	}

	if path != Memory {
		err := touchDBFile(path)
		if err != nil {
			return nil, errors.New("failed to create db file")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if path == Memory {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	_, err = db.ExecContext(ctx, setForeignKeyCheck)
	if err != nil {
		return nil, errors.New("failed to enable foreign key checks")
	}

	err = migrate(ctx, db)
	if err != nil {
		return nil, err
	}

	return &Sqlite{db, ctx}, nil
}

func (db Sqlite) Context() context.Context {
	return db.context
}

func touchDBFile(filename string) error {
	_, err := os.Stat(filename)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			return err
		}

		file, createErr := os.Create(filename)
		if createErr != nil {
			return createErr
		}

		closeErr := file.Close()
		if closeErr != nil {
			return closeErr
		}
	}

	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var currentMigration int

	row := db.QueryRowContext(ctx, getCurrentMigration)

	err := row.Scan(&currentMigration)
	if err != nil {
		return err
	}

	requiredMigration := len(migrations)

	log.Debugf("Current DB version: %v, required DB version: %v", currentMigration, requiredMigration)

	if currentMigration < requiredMigration {
		for migrationNum := currentMigration + 1; migrationNum <= requiredMigration; migrationNum++ {
			err = execMigration(ctx, db, migrationNum)
			if err != nil {
				log.Errorf("Error running migration %v '%v'", migrationNum, migrations[migrationNum-1].migrationName)

				return err
			}
		}
	}

	return nil
}

func execMigration(ctx context.Context, db *sql.DB, migrationNum int) error {
	log.Debugf("Running migration %v '%v'", migrationNum, migrations[migrationNum-1].migrationName)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	//nolint
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, migrations[migrationNum-1].migrationQuery)
	if err != nil {
		return err
	}

	setQuery := strings.Replace(setCurrentMigration, "?", strconv.Itoa(migrationNum), 1)

	_, err = tx.ExecContext(ctx, setQuery)
	if err != nil {
		return err
	}

	return tx.Commit()
}

var nilDatabase = errors.New("database error")

const timeout = 15 * time.Second

// Error reports whether db is usable.
func Error(db *Sqlite) error {
	if db == nil {
		return nilDatabase
	}
	ctx, cancel := context.WithTimeout(db.Context(), timeout)
	defer cancel()
	return db.PingContext(ctx)
}

// Err is Error as a method so a nil *Sqlite still reports a problem.
func (db *Sqlite) Err() error {
	return Error(db)
}
