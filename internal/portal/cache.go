package portal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	gradesFile     = "grades.csv"
	planFile       = "plan_table.html"
	completionFile = "plan_completion_table.html"
)

// Cache stores analyzed portal data under a directory so repeated tool calls
// do not hit the portal again.
type Cache struct {
	dir string
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// WriteGrades persists the grade table as CSV, header row first.
func (c *Cache) WriteGrades(t *GradeTable) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(t.Headers); err != nil {
		return fmt.Errorf("writing grade headers: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("writing grade rows: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, gradesFile), []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("saving grades cache: %w", err)
	}
	return nil
}

// ReadGrades loads the cached grade table. A missing or unreadable cache is
// an error; callers treat it as a miss.
func (c *Cache) ReadGrades() (*GradeTable, error) {
	f, err := os.Open(filepath.Join(c.dir, gradesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading grades cache: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("grades cache is empty")
	}
	return &GradeTable{Headers: records[0], Rows: records[1:]}, nil
}

// WritePlan persists the cleaned plan table fragment.
func (c *Cache) WritePlan(html string) error {
	return os.WriteFile(filepath.Join(c.dir, planFile), []byte(html), 0o600)
}

// ReadPlan loads the cached plan table fragment.
func (c *Cache) ReadPlan() (string, error) {
	return c.readText(planFile)
}

// WriteCompletion persists the cleaned plan-completion fragment.
func (c *Cache) WriteCompletion(html string) error {
	return os.WriteFile(filepath.Join(c.dir, completionFile), []byte(html), 0o600)
}

// ReadCompletion loads the cached plan-completion fragment.
func (c *Cache) ReadCompletion() (string, error) {
	return c.readText(completionFile)
}

func (c *Cache) readText(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%s is empty", name)
	}
	return string(data), nil
}
