package codegen

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		plan  Plan
		files []File
	}{
		{
			name: "nothing yet",
			text: "Sure, here",
			plan: Plan{State: PlanPending},
		},
		{
			name: "plan streaming",
			text: "<plan>\nAdd a dark mode tog",
			plan: Plan{State: PlanIncomplete, Value: "Add a dark mode tog"},
		},
		{
			name: "partial closing tag hidden",
			text: "<plan>\nAdd a button\n</pl",
			plan: Plan{State: PlanIncomplete, Value: "Add a button"},
		},
		{
			name: "plan complete",
			text: "<plan>\nAdd a button\n</plan>\n",
			plan: Plan{State: PlanComplete, Value: "Add a button"},
		},
		{
			name: "file path incomplete",
			text: "<plan>p</plan>\n<file path=\"src/Ap",
			plan: Plan{State: PlanComplete, Value: "p"},
		},
		{
			name:  "file streaming",
			text:  "<plan>p</plan>\n<file path=\"src/App.tsx\">\nexport default",
			plan:  Plan{State: PlanComplete, Value: "p"},
			files: []File{{Path: "src/App.tsx", Content: "export default"}},
		},
		{
			name:  "file partial close",
			text:  "<plan>p</plan>\n<file path=\"a.ts\">\nx\n</fi",
			plan:  Plan{State: PlanComplete, Value: "p"},
			files: []File{{Path: "a.ts", Content: "x\n"}},
		},
		{
			name: "two files",
			text: "<plan>p</plan>\n<file path=\"a.ts\">\nx\n</file>\n<file path=\"b.ts\">\ny\n</file>\n",
			plan: Plan{State: PlanComplete, Value: "p"},
			files: []File{
				{Path: "a.ts", Content: "x", Done: true},
				{Path: "b.ts", Content: "y", Done: true},
			},
		},
		{
			name: "files before plan closes are ignored",
			text: "<plan>p <file path=\"a.ts\">x",
			plan: Plan{State: PlanIncomplete, Value: "p <file path=\"a.ts\">x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			want := Snapshot{Plan: tt.plan, Files: tt.files}
			if !got.Equal(want) {
				t.Errorf("Parse(%q)\n got  %+v\n want %+v", tt.text, got, want)
			}
		})
	}
}

func TestParsePrefixesAreMonotonic(t *testing.T) {
	text := "<plan>\nMake it blue\n</plan>\n<file path=\"src/index.css\">\nbody { color: blue; }\n</file>\n"

	seenComplete := false
	maxFiles := 0
	for i := 0; i <= len(text); i++ {
		snap := Parse(text[:i])
		if seenComplete && snap.Plan.State != PlanComplete {
			t.Fatalf("prefix %d: plan regressed from Complete", i)
		}
		if snap.Plan.State == PlanComplete {
			seenComplete = true
		}
		if len(snap.Files) < maxFiles {
			t.Fatalf("prefix %d: file count regressed", i)
		}
		maxFiles = len(snap.Files)
	}
	final := Parse(text)
	if final.Plan.Value != "Make it blue" || len(final.Files) != 1 || final.Files[0].Content != "body { color: blue; }" {
		t.Errorf("unexpected final snapshot %+v", final)
	}
}

func TestPartialPlanNeverRetractsText(t *testing.T) {
	text := "<plan>\nKeep a < b and render </br> tags as-is\n</plan>\n"
	final := Parse(text).Plan.Value
	if final != "Keep a < b and render </br> tags as-is" {
		t.Fatalf("final plan = %q", final)
	}

	prev := ""
	for i := 0; i <= len(text); i++ {
		got := Parse(text[:i]).Plan.Value
		if !strings.HasPrefix(got, prev) {
			t.Fatalf("prefix %d: plan %q retracts earlier %q", i, got, prev)
		}
		if !strings.HasPrefix(final, got) {
			t.Fatalf("prefix %d: plan %q is not a prefix of the final plan", i, got)
		}
		prev = got
	}
}

func TestTrimPartialTag(t *testing.T) {
	tests := []struct{ in, tag, want string }{
		{"abc</", "</plan>", "abc"},
		{"abc</plan", "</plan>", "abc"},
		{"abc", "</plan>", "abc"},
		{"a<b", "</file>", "a<b"},
	}
	for _, tt := range tests {
		if got := trimPartialTag(tt.in, tt.tag); got != tt.want {
			t.Errorf("trimPartialTag(%q, %q) = %q, want %q", tt.in, tt.tag, got, tt.want)
		}
	}
}
