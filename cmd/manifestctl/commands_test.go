package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/manifestcheck/internal/core"
)

const shipment = "Manifest ID,Origin,Destination,HS Code,Description,Quantity,UOM,Value,Tariff Rate,Duty\n" +
	",CN,US,847120,Laptops,10,PCS,1000,5,\n" +
	"M-2,DE,US,0902300000,Green tea,200,KG,500,2,10.00\n" +
	",CN,US,847120,Laptops,10,PCS,1000,5,\n"

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(&app{svc: core.NewService(core.Options{})})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestAnalyzeCommand(t *testing.T) {
	path := writeFile(t, "shipment.csv", shipment)

	out, _, err := run(t, "", "analyze", path)
	require.NoError(t, err)

	var rep struct {
		FileName    string `json:"file_name"`
		RecordCount int    `json:"record_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "shipment.csv", rep.FileName)
	assert.Equal(t, 3, rep.RecordCount)

	_, _, err = run(t, "", "analyze", "--min-score", "101", path)
	assert.ErrorIs(t, err, errBelowMinimum)

	html, _, err := run(t, "", "analyze", "--html", path)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>shipment.csv</h1>")
}

func TestCorrectCommand(t *testing.T) {
	path := writeFile(t, "shipment.csv", shipment)
	target := filepath.Join(t.TempDir(), "out.xml")

	out, errOut, err := run(t, "", "correct", "-f", "xml", "-o", target, path)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "shipment_corrected.xml: 6 issues fixed, 1 duplicates removed")

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(written), "<?xml"))

	stdout, _, err := run(t, "", "correct", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "Manifest ID,"))
}

func TestCorrectCommand_Unparseable(t *testing.T) {
	path := writeFile(t, "notes.docx", "hello")

	_, _, err := run(t, "", "correct", path)
	require.Error(t, err)
	assert.Equal(t, "This file type is not supported", err.Error())
}

func TestFixCommand(t *testing.T) {
	record := `{"hs_code": "847120", "description": "Laptops", "quantity": 10, "uom": "", "origin": "CN", "destination": "US", "total_value": 1000}`

	out, _, err := run(t, record, "fix", "-")
	require.NoError(t, err)

	var res struct {
		Record map[string]string `json:"record"`
		State  string            `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "0847120", res.Record["hs_code"])
	assert.Equal(t, "exhausted", res.State)

	_, _, err = run(t, "not json", "fix", "-")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}
