package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/quire/layout"
)

func TestPlanSingleInputInfersFormat(t *testing.T) {
	jobs, err := plan([]string{"a/report.quire"}, "out/report.html", "", "", nil, layout.BuildOptions{})
	if err != nil {
		t.Fatalf("plan 失败: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Format != "html" || jobs[0].Output != "out/report.html" {
		t.Fatalf("单个输入的计划不符: %+v", jobs)
	}
	if jobs[0].Options.Origin != "a/report.quire" {
		t.Fatalf("错误定位应使用输入文件名: %q", jobs[0].Options.Origin)
	}
}

func TestPlanMultipleInputsUseDirectory(t *testing.T) {
	jobs, err := plan([]string{"a/one.quire", "b/two.quire"}, "out", "svg", "dbg", nil, layout.BuildOptions{})
	if err != nil {
		t.Fatalf("plan 失败: %v", err)
	}
	var got []string
	for _, j := range jobs {
		got = append(got, j.Output, j.Debug)
	}
	want := []string{
		filepath.Join("out", "one.svg"), filepath.Join("dbg", "one.json"),
		filepath.Join("out", "two.svg"), filepath.Join("dbg", "two.json"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("输出路径不符 (-want +got):\n%s", diff)
	}
}

func TestPlanRejectsUnknownFormat(t *testing.T) {
	if _, err := plan([]string{"a.quire"}, "out.docx", "", "", nil, layout.BuildOptions{}); err == nil {
		t.Fatalf("未知格式应报错")
	}
}

func TestLoadData(t *testing.T) {
	data, err := loadData(`{"title":"x"}`)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if diff := cmp.Diff(map[string]any{"title": "x"}, data); diff != "" {
		t.Fatalf("内联 JSON 不符:\n%s", diff)
	}

	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`[1,2]`), 0o644); err != nil {
		t.Fatalf("%v", err)
	}
	data, err = loadData("@" + path)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if diff := cmp.Diff([]any{1.0, 2.0}, data); diff != "" {
		t.Fatalf("文件 JSON 不符:\n%s", diff)
	}

	if _, err := loadData("{bad"); err == nil {
		t.Fatalf("非法 JSON 应报错")
	}
}

func TestRunWritesHTML(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "doc.quire")
	src := `design Doc v1 {
  resources {
    font Body {
      src: "builtin:regular"
    }
  }
  page A5 margin 15mm {
    text Body { "Hello ${name}" }
  }
}`
	if err := os.WriteFile(in, []byte(src), 0o644); err != nil {
		t.Fatalf("%v", err)
	}
	out := filepath.Join(dir, "out", "doc.html")
	j := job{Input: in, Output: out, Format: "html", Data: map[string]any{"name": "Quire"}}
	if err := run(j); err != nil {
		t.Fatalf("run 失败: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if len(b) == 0 {
		t.Fatalf("输出为空")
	}
}
