package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"contentizer/internal/timeline"
	"contentizer/pkg/models"
)

// Database wraps a *sql.DB providing the project store contract over
// SQLite. Each project is persisted as one row: identity and display
// columns plus the versions document serialized as JSON, so the store
// stays an opaque document store to the timeline core. It is safe for
// concurrent use because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for better performance
	getProjectStmt    *sql.Stmt
	insertProjectStmt *sql.Stmt
	updateProjectStmt *sql.Stmt
	listProjectsStmt  *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path
// and ensures all required tables and indices exist. It also applies
// lightweight performance-oriented pragmas (WAL, cache sizing). Caller
// should Close() it when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - adjusted for SQLite
	conn.SetMaxOpenConns(5) // SQLite works better with fewer connections
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	// Enable WAL mode for better concurrency
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA auto_vacuum=INCREMENTAL;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Project store initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist,
// then executes any migrations. Idempotent and safe to call repeatedly.
func (db *Database) createTables() error {
	projectsTable := `
	CREATE TABLE IF NOT EXISTS projects (
		project_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		project_directory TEXT NOT NULL,
		thumbnail TEXT,
		last_edited DATETIME NOT NULL,
		versions TEXT NOT NULL,
		revision INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id, last_edited);",
		"CREATE INDEX IF NOT EXISTS idx_projects_directory ON projects(project_directory);",
	}

	if _, err := db.conn.Exec(projectsTable); err != nil {
		return err
	}
	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	// Run migrations
	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each
// migration should be idempotent and safe to re-run; keep them
// lightweight.
func (db *Database) runMigrations() error {
	// Migration 1: Add revision column to projects created before
	// optimistic concurrency existed.
	var revisionExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('projects')
		WHERE name = 'revision'`).Scan(&revisionExists)
	if err != nil {
		return err
	}

	if !revisionExists {
		if _, err := db.conn.Exec("ALTER TABLE projects ADD COLUMN revision INTEGER NOT NULL DEFAULT 1"); err != nil {
			return err
		}
		db.logger.Info("Added revision column to projects table")
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements for better performance
func (db *Database) prepareStatements() error {
	var err error

	db.getProjectStmt, err = db.conn.Prepare(`
		SELECT project_id, user_id, name, project_directory, COALESCE(thumbnail, ''), last_edited, versions, revision
		FROM projects WHERE project_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get project statement: %w", err)
	}

	db.insertProjectStmt, err = db.conn.Prepare(`
		INSERT INTO projects (project_id, user_id, name, project_directory, thumbnail, last_edited, versions, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert project statement: %w", err)
	}

	// Compare-and-swap update: the WHERE clause carries the revision the
	// caller read, so a concurrent writer's change is never overwritten.
	db.updateProjectStmt, err = db.conn.Prepare(`
		UPDATE projects
		SET name = ?, thumbnail = ?, last_edited = ?, versions = ?, revision = revision + 1
		WHERE project_id = ? AND revision = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare update project statement: %w", err)
	}

	db.listProjectsStmt, err = db.conn.Prepare(`
		SELECT project_id, user_id, name, project_directory, COALESCE(thumbnail, ''), last_edited, versions, revision
		FROM projects
		WHERE user_id = ?
		ORDER BY last_edited DESC
		LIMIT ? OFFSET ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare list projects statement: %w", err)
	}

	return nil
}

// GetProject returns the project with the given ID, or (nil, nil) when it
// does not exist.
func (db *Database) GetProject(projectID string) (*models.Project, error) {
	project, err := scanProject(db.getProjectStmt.QueryRow(projectID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		db.logger.WithError(err).WithField("project_id", projectID).Error("Failed to get project")
		return nil, err
	}
	return project, nil
}

// GetProjectByTrackRef returns the project owning a track whose location
// matches ref (exactly, or by base name), or (nil, nil) when none does.
// The candidate set is narrowed with a LIKE over the versions document
// and then verified against the decoded track list.
func (db *Database) GetProjectByTrackRef(ref string) (*models.Project, error) {
	if ref == "" {
		return nil, nil
	}

	rows, err := db.conn.Query(`
		SELECT project_id, user_id, name, project_directory, COALESCE(thumbnail, ''), last_edited, versions, revision
		FROM projects
		WHERE versions LIKE '%' || ? || '%'`, ref)
	if err != nil {
		db.logger.WithError(err).WithField("ref", ref).Error("Failed to query projects by track ref")
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		for _, version := range project.Versions {
			for _, track := range version.Tracks {
				if track.Location == ref || filepath.Base(track.Location) == ref {
					return project, nil
				}
			}
		}
	}
	return nil, rows.Err()
}

// CreateProject inserts a new project document. The project's versions
// sequence must already be seeded (version "0").
func (db *Database) CreateProject(project *models.Project) error {
	versions, err := json.Marshal(project.Versions)
	if err != nil {
		return fmt.Errorf("failed to encode versions document: %w", err)
	}

	_, err = db.insertProjectStmt.Exec(
		project.ProjectID, project.UserID, project.Name, project.ProjectDirectory,
		project.Thumbnail, project.LastEdited, string(versions))
	if err != nil {
		db.logger.WithError(err).WithField("project_id", project.ProjectID).Error("Failed to create project")
		return err
	}

	project.Revision = 1
	return nil
}

// UpdateProject overwrites the project's mutable fields. The write only
// lands if the stored revision still matches the one the caller read;
// otherwise timeline.ErrConflict is returned and nothing changes.
func (db *Database) UpdateProject(project *models.Project) error {
	versions, err := json.Marshal(project.Versions)
	if err != nil {
		return fmt.Errorf("failed to encode versions document: %w", err)
	}

	result, err := db.updateProjectStmt.Exec(
		project.Name, project.Thumbnail, project.LastEdited, string(versions),
		project.ProjectID, project.Revision)
	if err != nil {
		db.logger.WithError(err).WithField("project_id", project.ProjectID).Error("Failed to update project")
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		db.logger.WithFields(logrus.Fields{
			"project_id": project.ProjectID,
			"revision":   project.Revision,
		}).Warn("Project update lost a revision race")
		return fmt.Errorf("%w: project %s revision %d", timeline.ErrConflict, project.ProjectID, project.Revision)
	}

	project.Revision++
	return nil
}

// ListProjects returns a user's projects ordered by most recently edited.
func (db *Database) ListProjects(userID string, limit, offset int) ([]models.Project, error) {
	rows, err := db.listProjectsStmt.Query(userID, limit, offset)
	if err != nil {
		db.logger.WithError(err).WithField("user_id", userID).Error("Failed to list projects")
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, rows.Err()
}

// Ping verifies the underlying connection is alive.
func (db *Database) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.getProjectStmt,
		db.insertProjectStmt,
		db.updateProjectStmt,
		db.listProjectsStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProject scans one project row and decodes its versions document.
func scanProject(row rowScanner) (*models.Project, error) {
	var project models.Project
	var versions string

	err := row.Scan(&project.ProjectID, &project.UserID, &project.Name,
		&project.ProjectDirectory, &project.Thumbnail, &project.LastEdited, &versions, &project.Revision)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(versions), &project.Versions); err != nil {
		return nil, fmt.Errorf("failed to decode versions document for %s: %w", project.ProjectID, err)
	}

	return &project, nil
}
