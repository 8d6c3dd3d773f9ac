package main

import (
	"strings"
	"testing"
)

func TestParseIDs(t *testing.T) {
	input := `# seed papers
649def34f8be52c8b66281af98ae884c09aef38b
  DOI:10.1093/sysbio/syy032   # phylogenetics

649def34f8be52c8b66281af98ae884c09aef38b
ARXIV:2106.15928
`
	ids, err := parseIDs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseIDs: %v", err)
	}

	want := []string{
		"649def34f8be52c8b66281af98ae884c09aef38b",
		"DOI:10.1093/sysbio/syy032",
		"ARXIV:2106.15928",
	}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids %v, want %d", len(ids), ids, len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestParseIDs_Empty(t *testing.T) {
	ids, err := parseIDs(strings.NewReader("\n# nothing\n\n"))
	if err != nil {
		t.Fatalf("parseIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %v, want no ids", ids)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "Phylogenetics", 20, "Phylogenetics"},
		{"exact", "abcde", 5, "abcde"},
		{"long", "abcdefghij", 8, "abcde..."},
		{"multibyte", "ééééééé", 6, "ééé..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateString(tt.in, tt.max); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestMergeIDs_DedupesAcrossSources(t *testing.T) {
	args := []string{"ARXIV:2106.15928", " 649def34f8be52c8b66281af98ae884c09aef38b ", "ARXIV:2106.15928"}
	fromFile := []string{"649def34f8be52c8b66281af98ae884c09aef38b", "DOI:10.1093/sysbio/syy032", ""}

	got := mergeIDs(args, fromFile)
	want := []string{"ARXIV:2106.15928", "649def34f8be52c8b66281af98ae884c09aef38b", "DOI:10.1093/sysbio/syy032"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
