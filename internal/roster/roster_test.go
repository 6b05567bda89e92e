package roster

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "roster.db"))
	if err != nil {
		t.Fatalf("failed to open roster db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRosterQueries(t *testing.T) {
	db := openTestDB(t)

	if err := db.AddClassroom("7", "3ro A"); err != nil {
		t.Fatalf("AddClassroom failed: %v", err)
	}
	if err := db.AddClassroom("8", "3ro B"); err != nil {
		t.Fatalf("AddClassroom failed: %v", err)
	}

	if err := db.AssignTeacher("t1", "7", "Matemática"); err != nil {
		t.Fatalf("AssignTeacher failed: %v", err)
	}
	if err := db.AssignTeacher("t1", "7", "Historia"); err != nil {
		t.Fatalf("AssignTeacher failed: %v", err)
	}
	if err := db.AssignTeacher("t2", "8", "Arte"); err != nil {
		t.Fatalf("AssignTeacher failed: %v", err)
	}

	// g1 has two students in classroom 7, g2 has one in classroom 8.
	if err := db.EnrollStudent("s1", "Ana", "7", "g1"); err != nil {
		t.Fatalf("EnrollStudent failed: %v", err)
	}
	if err := db.EnrollStudent("s2", "Luis", "7", "g1"); err != nil {
		t.Fatalf("EnrollStudent failed: %v", err)
	}
	if err := db.EnrollStudent("s3", "Eva", "8", "g2"); err != nil {
		t.Fatalf("EnrollStudent failed: %v", err)
	}

	t.Run("TeacherIDs", func(t *testing.T) {
		ids, err := db.TeacherIDs("7")
		if err != nil {
			t.Fatalf("TeacherIDs failed: %v", err)
		}
		// Deduplicated across subjects.
		if len(ids) != 1 || ids[0] != "t1" {
			t.Errorf("expected [t1], got %v", ids)
		}
	})

	t.Run("GuardianIDs_Deduplicated", func(t *testing.T) {
		ids, err := db.GuardianIDs("7")
		if err != nil {
			t.Fatalf("GuardianIDs failed: %v", err)
		}
		// g1 has two students in the classroom but appears once.
		if len(ids) != 1 || ids[0] != "g1" {
			t.Errorf("expected [g1], got %v", ids)
		}
	})

	t.Run("EmptyClassroom", func(t *testing.T) {
		ids, err := db.GuardianIDs("999")
		if err != nil {
			t.Fatalf("GuardianIDs failed: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected no guardians, got %v", ids)
		}
	})

	t.Run("ReenrollMovesStudent", func(t *testing.T) {
		if err := db.EnrollStudent("s3", "Eva", "7", "g2"); err != nil {
			t.Fatalf("EnrollStudent failed: %v", err)
		}
		ids, err := db.GuardianIDs("8")
		if err != nil {
			t.Fatalf("GuardianIDs failed: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected classroom 8 empty after move, got %v", ids)
		}
	})
}
