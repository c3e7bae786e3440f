package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegistry_DispatchRunsHandler(t *testing.T) {
	r := NewRegistry()
	var gotCache bool
	err := r.Register("analyze_gpa", "查询成绩", func(_ context.Context, input AnalyzeInput) (string, error) {
		gotCache = input.UseCache
		return "平均分 88.5", nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ok, payload := r.Dispatch(context.Background(), "analyze_gpa", `{"use_cache": true}`)
	if !ok {
		t.Fatalf("Dispatch() ok = false, payload = %q", payload)
	}
	if payload != "平均分 88.5" {
		t.Errorf("payload = %q", payload)
	}
	if !gotCache {
		t.Error("use_cache was not decoded into the handler input")
	}
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	r := NewRegistry()

	ok, payload := r.Dispatch(context.Background(), "analyze_unknown", `{}`)
	if ok {
		t.Fatal("Dispatch() ok = true for unknown tool")
	}
	if payload != "unknown tool: analyze_unknown" {
		t.Errorf("payload = %q, want %q", payload, "unknown tool: analyze_unknown")
	}
}

func TestRegistry_DispatchMalformedArguments(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("analyze_plan", "", func(context.Context, AnalyzeInput) (string, error) {
		t.Fatal("handler must not run on malformed arguments")
		return "", nil
	}); err != nil {
		t.Fatal(err)
	}

	ok, payload := r.Dispatch(context.Background(), "analyze_plan", `{"use_cache":`)
	if ok {
		t.Fatal("Dispatch() ok = true for malformed arguments")
	}
	if !strings.Contains(payload, "analyze_plan") {
		t.Errorf("payload = %q, want the tool name in the diagnostic", payload)
	}
}

func TestRegistry_DispatchHandlerError(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("analyze_gpa", "", func(context.Context, AnalyzeInput) (string, error) {
		return "", errors.New("教务系统登录失败")
	}); err != nil {
		t.Fatal(err)
	}

	ok, payload := r.Dispatch(context.Background(), "analyze_gpa", `{}`)
	if ok {
		t.Fatal("Dispatch() ok = true for failing handler")
	}
	if payload != "教务系统登录失败" {
		t.Errorf("payload = %q", payload)
	}
}

func TestRegistry_RejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, AnalyzeInput) (string, error) { return "", nil }
	if err := r.Register("analyze_gpa", "", noop); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("analyze_gpa", "", noop); err == nil {
		t.Error("Register() duplicate = nil, want error")
	}
}

func TestRegistry_DeclarationsSortedWithSchemas(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, AnalyzeInput) (string, error) { return "", nil }
	for _, name := range []string{"analyze_plan", "analyze_gpa"} {
		if err := r.Register(name, "desc", noop); err != nil {
			t.Fatal(err)
		}
	}

	decls := r.Declarations()
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
	if decls[0].Name != "analyze_gpa" || decls[1].Name != "analyze_plan" {
		t.Errorf("order = %s, %s; want sorted by name", decls[0].Name, decls[1].Name)
	}
	for _, d := range decls {
		if !strings.Contains(string(d.Parameters), "use_cache") {
			t.Errorf("%s schema %s does not mention use_cache", d.Name, d.Parameters)
		}
	}
}

type fakeAcademic struct{ calls []string }

func (f *fakeAcademic) AnalyzeGPA(_ context.Context, useCache bool) (string, error) {
	f.calls = append(f.calls, "gpa")
	return "成绩表", nil
}

func (f *fakeAcademic) AnalyzePlan(_ context.Context, _ bool) (string, error) {
	f.calls = append(f.calls, "plan")
	return "培养方案", nil
}

func (f *fakeAcademic) AnalyzePlanCompletion(_ context.Context, _ bool) (string, error) {
	f.calls = append(f.calls, "completion")
	return "完成情况", nil
}

func TestNewAcademic_ExposesThreeTools(t *testing.T) {
	svc := &fakeAcademic{}
	r, err := NewAcademic(svc)
	if err != nil {
		t.Fatalf("NewAcademic() error = %v", err)
	}

	decls := r.Declarations()
	want := []string{"analyze_gpa", "analyze_plan", "analyze_plan_completion"}
	if len(decls) != len(want) {
		t.Fatalf("got %d tools, want %d", len(decls), len(want))
	}
	for i, name := range want {
		if decls[i].Name != name {
			t.Errorf("tool[%d] = %s, want %s", i, decls[i].Name, name)
		}
	}

	ok, payload := r.Dispatch(context.Background(), "analyze_plan_completion", `{"use_cache": false}`)
	if !ok || payload != "完成情况" {
		t.Errorf("Dispatch() = (%v, %q)", ok, payload)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "completion" {
		t.Errorf("calls = %v", svc.calls)
	}
}
