package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/anastasiyaperk/Ycrawler/internal/domain"
)

// AppendReport adds one row to report.csv, creating the file on first use.
// Appends are serialized so concurrent stories never interleave rows.
func (s *Store) AppendReport(row domain.ReportRow) error {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()

	f, err := os.OpenFile(s.reportPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{strconv.Itoa(row.ID), row.Title}); err != nil {
		f.Close()
		return fmt.Errorf("write report row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush report row: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

// ProcessedIDs reads the story ids already recorded in report.csv, used to
// seed the seen registry on restart. A missing report means a fresh start.
func (s *Store) ProcessedIDs() ([]int, error) {
	f, err := os.Open(s.reportPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var ids []int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			// Damaged rows are skipped rather than failing the whole seed.
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
