package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return rows
}

func TestSaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	records := []*models.BusinessRecord{
		{Name: "Acme Lawns", Rating: "4.8", ReviewCount: "127", Phone: "(908) 555-1234"},
		{Name: "Green Thumb", Email: "info@greenthumb.com"},
	}
	if err := SaveCSV(records, path); err != nil {
		t.Fatalf("SaveCSV failed: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "business name" || rows[0][5] != "Phone Number" {
		t.Errorf("Unexpected header row: %v", rows[0])
	}
	if rows[1][0] != "Acme Lawns" || rows[1][5] != "(908) 555-1234" {
		t.Errorf("Unexpected first data row: %v", rows[1])
	}
}

func TestAppendCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	first := []*models.BusinessRecord{{Name: "One"}}
	second := []*models.BusinessRecord{{Name: "Two"}, {Name: "Three"}}

	if err := AppendCSV(first, path); err != nil {
		t.Fatalf("First append failed: %v", err)
	}
	if err := AppendCSV(second, path); err != nil {
		t.Fatalf("Second append failed: %v", err)
	}

	rows := readAll(t, path)
	// Header written once, then the three data rows.
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "business name" {
		t.Errorf("Expected header first, got %v", rows[0])
	}
	if rows[3][0] != "Three" {
		t.Errorf("Expected last row 'Three', got %v", rows[3])
	}
}
