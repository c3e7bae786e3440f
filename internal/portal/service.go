package portal

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"sync"

	"github.com/neuassist/neuassist/internal/log"
)

// Service runs the full login, fetch, analyze, cache pipeline behind the
// academic analysis tools. Portal access is serialized: the client shares one
// cookie session and the portal dislikes concurrent logins.
type Service struct {
	mu       sync.Mutex
	client   *Client
	cache    *Cache
	logger   log.Logger
	loggedIn bool
}

// NewService creates a Service.
func NewService(client *Client, cache *Cache, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{client: client, cache: cache, logger: logger}
}

func (s *Service) ensureLogin(ctx context.Context) error {
	if s.loggedIn {
		return nil
	}
	if err := s.client.Login(ctx); err != nil {
		return fmt.Errorf("登录失败: %w", err)
	}
	s.loggedIn = true
	return nil
}

// renderGrades flattens the grade table to CSV text for the model context.
func renderGrades(t *GradeTable) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(t.Headers); err != nil {
		return "", err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// AnalyzeGPA returns the full grade record as CSV text. With useCache it
// serves the cached copy when present and falls through to a live fetch
// otherwise.
func (s *Service) AnalyzeGPA(ctx context.Context, useCache bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if useCache {
		if t, err := s.cache.ReadGrades(); err == nil {
			s.logger.Debug("serving cached grades")
			return renderGrades(t)
		}
	}

	if err := s.ensureLogin(ctx); err != nil {
		return "", err
	}
	page, err := s.client.FetchGrades(ctx)
	if err != nil {
		return "", err
	}
	table, err := ParseGrades(page)
	if err != nil {
		return "", fmt.Errorf("分析成绩数据失败: %w", err)
	}
	if err := s.cache.WriteGrades(table); err != nil {
		s.logger.Warn("caching grades failed", "error", err)
	}
	return renderGrades(table)
}

// AnalyzePlan returns the cleaned curriculum plan table as an HTML fragment.
func (s *Service) AnalyzePlan(ctx context.Context, useCache bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if useCache {
		if html, err := s.cache.ReadPlan(); err == nil {
			s.logger.Debug("serving cached plan")
			return html, nil
		}
	}

	if err := s.ensureLogin(ctx); err != nil {
		return "", err
	}
	page, err := s.client.FetchPlan(ctx)
	if err != nil {
		return "", err
	}
	cleaned, err := CleanPlanTable(page)
	if err != nil {
		return "", fmt.Errorf("分析培养计划失败: %w", err)
	}
	if err := s.cache.WritePlan(cleaned); err != nil {
		s.logger.Warn("caching plan failed", "error", err)
	}
	return cleaned, nil
}

// AnalyzePlanCompletion returns the cleaned plan-completion tables as an
// HTML fragment.
func (s *Service) AnalyzePlanCompletion(ctx context.Context, useCache bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if useCache {
		if html, err := s.cache.ReadCompletion(); err == nil {
			s.logger.Debug("serving cached plan completion")
			return html, nil
		}
	}

	if err := s.ensureLogin(ctx); err != nil {
		return "", err
	}
	page, err := s.client.FetchPlanCompletion(ctx)
	if err != nil {
		return "", err
	}
	cleaned, err := CleanCompletion(page)
	if err != nil {
		return "", fmt.Errorf("分析培养计划完成情况失败: %w", err)
	}
	if err := s.cache.WriteCompletion(cleaned); err != nil {
		s.logger.Warn("caching plan completion failed", "error", err)
	}
	return cleaned, nil
}
