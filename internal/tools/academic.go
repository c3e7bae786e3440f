package tools

import (
	"context"
	"fmt"
)

// Academic provides the educational-administration analyses the tools wrap.
type Academic interface {
	AnalyzeGPA(ctx context.Context, useCache bool) (string, error)
	AnalyzePlan(ctx context.Context, useCache bool) (string, error)
	AnalyzePlanCompletion(ctx context.Context, useCache bool) (string, error)
}

// NewAcademic builds a registry exposing the academic analysis tools backed
// by the campus portal.
func NewAcademic(svc Academic) (*Registry, error) {
	r := NewRegistry()

	register := func(name, description string, fn func(ctx context.Context, useCache bool) (string, error)) error {
		return r.Register(name, description, func(ctx context.Context, input AnalyzeInput) (string, error) {
			return fn(ctx, input.UseCache)
		})
	}

	if err := register("analyze_gpa",
		"查询学生的全部课程成绩并计算加权平均分（绩点），返回成绩明细表格和统计结果",
		svc.AnalyzeGPA); err != nil {
		return nil, fmt.Errorf("register analyze_gpa: %w", err)
	}
	if err := register("analyze_plan",
		"查询学生的培养方案（教学计划），返回各学期应修课程的明细表格",
		svc.AnalyzePlan); err != nil {
		return nil, fmt.Errorf("register analyze_plan: %w", err)
	}
	if err := register("analyze_plan_completion",
		"查询学生培养方案的完成情况，返回各模块学分要求与已获得学分的对照表格",
		svc.AnalyzePlanCompletion); err != nil {
		return nil, fmt.Errorf("register analyze_plan_completion: %w", err)
	}

	return r, nil
}
