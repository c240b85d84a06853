package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWith_DoesNotMutate(t *testing.T) {
	orig := NewRecord(2, map[string]string{"HS Code": "84712"})
	orig.Fields[FieldHSCode] = "84712"

	next := orig.With("HS Code", FieldHSCode, "084712")

	assert.Equal(t, "84712", orig.Raw["HS Code"])
	assert.Equal(t, "84712", orig.Get(FieldHSCode))
	assert.Equal(t, "084712", next.Raw["HS Code"])
	assert.Equal(t, "084712", next.Get(FieldHSCode))
	assert.Equal(t, 2, next.Row)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"critical", SeverityCritical, true},
		{"Major", SeverityHigh, true},
		{"high", SeverityHigh, true},
		{" medium ", SeverityMedium, true},
		{"low", SeverityLow, true},
		{"blocker", SeverityLow, false},
	}
	for _, tt := range tests {
		got, ok := ParseSeverity(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestSeverity_UnmarshalMajor(t *testing.T) {
	var is Issue
	require.NoError(t, json.Unmarshal([]byte(`{"severity":"major","code":"X"}`), &is))
	assert.Equal(t, SeverityHigh, is.Severity)
}

func TestSortIssues(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityLow, Code: "DATE_FORMAT", Row: 2},
		{Severity: SeverityMedium, Code: "HS_CODE_PADDING", Row: 3},
		{Severity: SeverityCritical, Code: "MANIFEST_ID_MISSING", Row: 4},
		{Severity: SeverityHigh, Code: "DUTY_MISMATCH", Row: 2},
		{Severity: SeverityHigh, Code: "DUPLICATE_RECORD", Rows: []int{1, 5}},
	}
	SortIssues(issues)

	var codes []string
	for _, is := range issues {
		codes = append(codes, is.Code)
	}
	assert.Equal(t, []string{
		"MANIFEST_ID_MISSING", "DUPLICATE_RECORD", "DUTY_MISMATCH", "HS_CODE_PADDING", "DATE_FORMAT",
	}, codes)
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat(".XML")
	assert.True(t, ok)
	assert.Equal(t, FormatXML, f)

	f, ok = ParseFormat("docx")
	assert.False(t, ok)
	assert.Equal(t, FormatJSON, f)
	assert.Equal(t, "application/json", f.MimeType())
}

func TestDocumentBaseName(t *testing.T) {
	assert.Equal(t, "shipment", (&Document{FileName: "uploads/shipment.csv"}).BaseName())
	assert.Equal(t, "manifest", (&Document{}).BaseName())
}
