package portal

import (
	"context"
	"fmt"
	"net/http"
)

// FetchGrades retrieves the raw history-grade page for the major project.
func (c *Client) FetchGrades(ctx context.Context) (string, error) {
	rawURL := c.eamsURL + "/teach/grade/course/person!historyCourseGrade.action?projectType=MAJOR"
	page, err := c.do(ctx, http.MethodPost, rawURL, nil, map[string]string{
		"Accept":           "*/*",
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          c.eamsURL + "/teach/grade/course/person!search.action?semesterId=111&projectType=",
	})
	if err != nil {
		return "", fmt.Errorf("获取成绩失败: %w", err)
	}
	return page, nil
}

// FetchPlan retrieves the raw curriculum plan page.
func (c *Client) FetchPlan(ctx context.Context) (string, error) {
	page, err := c.get(ctx, c.eamsURL+"/myPlan.action", map[string]string{
		"Referer": c.eamsURL + "/homeExt.action",
	})
	if err != nil {
		return "", fmt.Errorf("获取培养计划失败: %w", err)
	}
	return page, nil
}

// FetchPlanCompletion retrieves the raw plan-completion page.
func (c *Client) FetchPlanCompletion(ctx context.Context) (string, error) {
	page, err := c.get(ctx, c.eamsURL+"/myPlanCompl.action", map[string]string{
		"Referer": c.eamsURL + "/myPlan.action",
	})
	if err != nil {
		return "", fmt.Errorf("获取培养计划完成情况失败: %w", err)
	}
	return page, nil
}
