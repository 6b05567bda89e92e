package roster

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB answers the relational roster queries backing the presence
// snapshot filter: which guardians have a student enrolled in a
// classroom, and which teachers are assigned to it.
type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open roster db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS classrooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS teachers (
			user_id TEXT NOT NULL,
			classroom_id TEXT NOT NULL REFERENCES classrooms(id),
			subject TEXT NOT NULL,
			UNIQUE(user_id, classroom_id, subject)
		)`,
		`CREATE TABLE IF NOT EXISTS students (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			classroom_id TEXT NOT NULL REFERENCES classrooms(id),
			guardian_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_teachers_classroom ON teachers(classroom_id)`,
		`CREATE INDEX IF NOT EXISTS idx_students_classroom ON students(classroom_id)`,
		`CREATE INDEX IF NOT EXISTS idx_students_guardian ON students(guardian_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to init roster schema: %w", err)
		}
	}

	return nil
}

func (db *DB) AddClassroom(id, name string) error {
	_, err := db.conn.Exec(
		`INSERT INTO classrooms (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, name)
	return err
}

// AssignTeacher records that the user teaches the subject in the
// classroom.
func (db *DB) AssignTeacher(userID, classroomID, subject string) error {
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO teachers (user_id, classroom_id, subject) VALUES (?, ?, ?)`,
		userID, classroomID, subject)
	return err
}

// EnrollStudent records a student in a classroom linked to a guardian
// user.
func (db *DB) EnrollStudent(studentID, name, classroomID, guardianID string) error {
	_, err := db.conn.Exec(
		`INSERT INTO students (id, name, classroom_id, guardian_id) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			classroom_id = excluded.classroom_id,
			guardian_id = excluded.guardian_id`,
		studentID, name, classroomID, guardianID)
	return err
}

// GuardianIDs returns the distinct guardian user IDs with at least one
// student enrolled in the classroom. A guardian with several students
// in the classroom appears once.
func (db *DB) GuardianIDs(classroomID string) ([]string, error) {
	return db.queryIDs(
		`SELECT DISTINCT guardian_id FROM students WHERE classroom_id = ? ORDER BY guardian_id`,
		classroomID)
}

// TeacherIDs returns the distinct teacher user IDs assigned to the
// classroom.
func (db *DB) TeacherIDs(classroomID string) ([]string, error) {
	return db.queryIDs(
		`SELECT DISTINCT user_id FROM teachers WHERE classroom_id = ? ORDER BY user_id`,
		classroomID)
}

func (db *DB) queryIDs(query string, args ...any) ([]string, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
