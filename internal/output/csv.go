package output

import (
	"encoding/csv"
	"os"

	"github.com/omipheo/home-advisor-scraping/pkg/models"
)

// SaveCSV writes records to a CSV file with the standard header row.
// Used as the local mirror of every sheet append, so a run survives a
// Sheets outage with its data intact.
func SaveCSV(records []*models.BusinessRecord, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(models.HeaderRow); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(r.Row()); err != nil {
			return err
		}
	}
	return writer.Error()
}

// AppendCSV adds records to an existing CSV file, creating it with a
// header row when missing.
func AppendCSV(records []*models.BusinessRecord, filepath string) error {
	_, statErr := os.Stat(filepath)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if fresh {
		if err := writer.Write(models.HeaderRow); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := writer.Write(r.Row()); err != nil {
			return err
		}
	}
	return writer.Error()
}
