package correct

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/mapping"
	"github.com/JonMunkholm/manifestcheck/internal/parser"
	"github.com/JonMunkholm/manifestcheck/internal/rules"
)

const shipment = `Manifest ID,Origin,Destination,HS Code,Description,Quantity,UOM,Value,Tariff Rate,Duty
,CN,US,847120,Laptops,10,PCS,1000,5,
M-2,DE,US,0902300000,Green tea,200,KG,500,2,10.00
,CN,US,847120,Laptops,10,PCS,1000,5,
`

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("GEN-%d", n)
	}
}

func load(t *testing.T, name, body string) (*manifest.Document, mapping.ColumnMap) {
	t.Helper()
	doc, err := parser.Parse(name, []byte(body))
	require.NoError(t, err)
	return mapping.DefaultPatterns().MapDocument(doc)
}

func TestCorrect_FixesAndDedupes(t *testing.T) {
	doc, cols := load(t, "shipment.csv", shipment)

	out, err := Correct(doc, cols, Options{NewID: sequentialIDs()})
	require.NoError(t, err)

	assert.Equal(t, "shipment_corrected.csv", out.FileName)
	assert.Equal(t, manifest.FormatCSV, out.Format)
	assert.Equal(t, "text/csv", out.MimeType)
	assert.Equal(t, 6, out.IssuesFixed)
	assert.Equal(t, 1, out.DuplicatesRemoved)

	require.Len(t, out.Document.Records, 2)
	first := out.Document.Records[0]
	assert.Equal(t, "GEN-1", first.Get(manifest.FieldManifestID))
	assert.Equal(t, "0847120", first.Get(manifest.FieldHSCode))
	assert.Equal(t, "50.00", first.Get(manifest.FieldDuty))
	assert.Equal(t, "0847120", first.Raw["HS Code"])

	second := out.Document.Records[1]
	assert.Equal(t, "M-2", second.Get(manifest.FieldManifestID))
	assert.Equal(t, "0902300000", second.Get(manifest.FieldHSCode))
	assert.Equal(t, "10.00", second.Get(manifest.FieldDuty))
}

func TestCorrect_LeavesInputUntouched(t *testing.T) {
	doc, cols := load(t, "shipment.csv", shipment)

	_, err := Correct(doc, cols, Options{NewID: sequentialIDs()})
	require.NoError(t, err)

	require.Len(t, doc.Records, 3)
	assert.Equal(t, "", doc.Records[0].Get(manifest.FieldManifestID))
	assert.Equal(t, "847120", doc.Records[0].Raw["HS Code"])
}

func TestCorrect_RoundTrip(t *testing.T) {
	tests := []struct {
		format manifest.Format
		name   string
	}{
		{manifest.FormatCSV, "shipment_corrected.csv"},
		{manifest.FormatXML, "shipment_corrected.xml"},
		{manifest.FormatJSON, "shipment_corrected.json"},
		{manifest.FormatEDI, "shipment_corrected.edi"},
		{manifest.FormatText, "shipment_corrected.txt"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			doc, cols := load(t, "shipment.csv", shipment)

			out, err := Correct(doc, cols, Options{Format: tt.format, NewID: sequentialIDs()})
			require.NoError(t, err)
			assert.Equal(t, tt.name, out.FileName)
			assert.Equal(t, tt.format.MimeType(), out.MimeType)

			again, _ := load(t, out.FileName, string(out.Content))
			require.Len(t, again.Records, 2)

			rec := again.Records[0]
			assert.Equal(t, "GEN-1", rec.Get(manifest.FieldManifestID))
			assert.Equal(t, "0847120", rec.Get(manifest.FieldHSCode))
			assert.Equal(t, "50.00", rec.Get(manifest.FieldDuty))
			assert.Equal(t, "Laptops", rec.Get(manifest.FieldDescription))
			assert.Equal(t, "Green tea", again.Records[1].Get(manifest.FieldDescription))
		})
	}
}

const taggedShipment = `<manifest>
  <shipmentId>SHP-9</shipmentId>
  <totalValue>3000</totalValue>
  <items>
    <item><HSCode>0847120000</HSCode><Description>Laptops</Description><Qty>2</Qty><UOM>PCS</UOM><Origin>CN</Origin><Destination>US</Destination></item>
    <item><HSCode>851712</HSCode><Description>Phones</Description><Qty>5</Qty><UOM>PCS</UOM><Origin>CN</Origin><Destination>US</Destination></item>
  </items>
</manifest>`

func TestCorrect_TaggedRoundTripKeepsDocumentTotal(t *testing.T) {
	doc, cols := load(t, "m.xml", taggedShipment)
	assert.False(t, cols.Has(manifest.FieldTotalValue), "document total is not a line value")

	out, err := Correct(doc, cols, Options{NewID: sequentialIDs()})
	require.NoError(t, err)
	assert.Equal(t, "m_corrected.xml", out.FileName)
	assert.Equal(t, 1, out.IssuesFixed)

	again, againCols := load(t, out.FileName, string(out.Content))
	assert.False(t, againCols.Has(manifest.FieldTotalValue))
	assert.Equal(t, out.Document.Headers, again.Headers)
	require.Len(t, again.Records, len(out.Document.Records))

	for i, rec := range out.Document.Records {
		for _, h := range out.Document.Headers {
			assert.Equal(t, rec.Raw[h], again.Records[i].Raw[h], "row %d field %s", i+1, h)
		}
	}
	assert.Equal(t, "3000", again.Records[1].Raw[manifest.ShipmentTotalKey])
	assert.Equal(t, "SHP-9", again.Records[1].Get(manifest.FieldManifestID))
	assert.Equal(t, "0851712", again.Records[1].Get(manifest.FieldHSCode))
}

func TestCorrect_AppliesRuleAutofixes(t *testing.T) {
	doc, cols := load(t, "lines.csv",
		"Manifest ID,Origin,Destination,HS Code,Description,Quantity,UOM,Value,Tariff Rate,Duty,Date\n"+
			"M-1,China,US,0847120000,Laptops,10,PCS,1000,5,48.00,03/15/2024\n")

	out, err := Correct(doc, cols, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.IssuesFixed)

	rec := out.Document.Records[0]
	assert.Equal(t, "CN", rec.Raw["Origin"])
	assert.Equal(t, "50.00", rec.Raw["Duty"])
	assert.Equal(t, "2024-03-15", rec.Raw["Date"])
	assert.Equal(t, "M-1", rec.Raw["Manifest ID"])
	assert.Empty(t, rules.New(rules.Options{}).ValidateRecord(rec, cols))
}

func TestCorrect_AddsColumnsWhenUnmapped(t *testing.T) {
	doc, cols := load(t, "lines.csv", "HS Code,Value,Tariff Rate\n084712,1000,5\n")

	out, err := Correct(doc, cols, Options{NewID: sequentialIDs()})
	require.NoError(t, err)

	assert.Equal(t, []string{"HS Code", "Value", "Tariff Rate", "manifest_id", "duty"}, out.Document.Headers)
	assert.Equal(t, "GEN-1", out.Document.Records[0].Raw["manifest_id"])
	assert.Equal(t, "50.00", out.Document.Records[0].Raw["duty"])
	assert.Len(t, doc.Headers, 3)
}

func TestCorrect_NoDutyWithoutRate(t *testing.T) {
	doc, cols := load(t, "lines.csv", "Manifest ID,Value,Duty\nM-1,1000,\n")

	out, err := Correct(doc, cols, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, out.IssuesFixed)
	assert.Equal(t, "", out.Document.Records[0].Get(manifest.FieldDuty))
}

func TestCorrect_GeneratesUUIDs(t *testing.T) {
	doc, cols := load(t, "lines.csv", "Manifest ID,Origin\n,CN\n,DE\n")

	out, err := Correct(doc, cols, Options{})
	require.NoError(t, err)

	a := out.Document.Records[0].Get(manifest.FieldManifestID)
	b := out.Document.Records[1].Get(manifest.FieldManifestID)
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestCorrect_UnknownFormatFallsBackToJSON(t *testing.T) {
	doc, cols := load(t, "shipment.csv", shipment)

	out, err := Correct(doc, cols, Options{Format: "xlsx", NewID: sequentialIDs()})
	require.NoError(t, err)
	assert.Equal(t, manifest.FormatJSON, out.Format)
	assert.Equal(t, "shipment_corrected.json", out.FileName)
}

func TestCorrect_PDF(t *testing.T) {
	doc, cols := load(t, "shipment.csv", shipment)

	out, err := Correct(doc, cols, Options{Format: manifest.FormatPDF, NewID: sequentialIDs()})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out.Content, []byte("%PDF")))
	assert.Equal(t, "application/pdf", out.MimeType)
	assert.Equal(t, "shipment_corrected.pdf", out.FileName)
}

func TestWriteArray_NumbersInNumericColumns(t *testing.T) {
	doc := &manifest.Document{
		Headers: []string{"HS Code", "Value", "Duty"},
		Records: []manifest.Record{
			manifest.NewRecord(1, map[string]string{"HS Code": "0847120", "Value": "1000", "Duty": "$50"}),
		},
	}

	b, err := writeArray(doc)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\"HS Code\": \"0847120\", \"Value\": 1000, \"Duty\": \"$50\"}\n]\n", string(b))
}

func TestXMLName(t *testing.T) {
	tests := map[string]string{
		"HS Code":      "HS_Code",
		"Tariff Rate%": "Tariff_Rate",
		"2nd origin":   "_2nd_origin",
		"???":          "field",
	}
	for in, want := range tests {
		assert.Equal(t, want, xmlName(in), "xmlName(%q)", in)
	}
}

func TestAlignedLines(t *testing.T) {
	doc := &manifest.Document{
		Headers: []string{"HS", "Description", "Qty"},
		Records: []manifest.Record{
			manifest.NewRecord(1, map[string]string{"HS": "0847120", "Description": "Laptops  16in", "Qty": ""}),
		},
	}

	lines := alignedLines(doc)
	require.Len(t, lines, 2)
	assert.Equal(t, "HS       Description   Qty", lines[0])
	assert.Equal(t, "0847120  Laptops 16in  -", lines[1])
}
