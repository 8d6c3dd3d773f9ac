package s2

import "testing"

func TestParsePaperID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantType  string
		wantValue string
	}{
		{"doi", "DOI:10.1038/nature12373", "DOI", "10.1038/nature12373"},
		{"lowercase doi prefix", "doi:10.1/x", "DOI", "10.1/x"},
		{"arxiv", "ARXIV:2106.15928", "ARXIV", "2106.15928"},
		{"corpus id", "CorpusId:215416146", "CorpusId", "215416146"},
		{"raw s2 id", "649def34f8be52c8b66281af98ae884c09aef38b", "S2", "649def34f8be52c8b66281af98ae884c09aef38b"},
		{"local id", "Smith2024", "LOCAL", "Smith2024"},
		{"whitespace trimmed", "  ARXIV:1234.5678 ", "ARXIV", "1234.5678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePaperID(tt.input)
			if got.Type != tt.wantType || got.Value != tt.wantValue {
				t.Errorf("ParsePaperID(%q) = %+v, want {%s %s}", tt.input, got, tt.wantType, tt.wantValue)
			}
		})
	}
}

func TestPaperIdentifier_String(t *testing.T) {
	if got := ParsePaperID("DOI:10.1/x").String(); got != "DOI:10.1/x" {
		t.Errorf("String() = %q", got)
	}
	raw := "649def34f8be52c8b66281af98ae884c09aef38b"
	if got := ParsePaperID(raw).String(); got != raw {
		t.Errorf("String() = %q", got)
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.1038/Nature", "10.1038/nature"},
		{"https://doi.org/10.1/ABC", "10.1/abc"},
		{"DOI:10.1/x", "10.1/x"},
		{" doi.org/10.1/y ", "10.1/y"},
	}
	for _, tt := range tests {
		if got := NormalizeDOI(tt.in); got != tt.want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPaperURL(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"649def34f8be52c8b66281af98ae884c09aef38b", PaperPageURL + "649def34f8be52c8b66281af98ae884c09aef38b"},
		{"unknown", PaperPageURL + "unknown"},
		{"DOI:10.1038/Nature1", "https://doi.org/10.1038/nature1"},
		{"ARXIV:2106.15928", "https://arxiv.org/abs/2106.15928"},
		{"URL:https://example.org/p", "https://example.org/p"},
	}
	for _, tt := range tests {
		if got := PaperURL(tt.id); got != tt.want {
			t.Errorf("PaperURL(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
