package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/manifestcheck/internal/fixloop"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/metrics"
	"github.com/JonMunkholm/manifestcheck/internal/parser"
	"github.com/JonMunkholm/manifestcheck/internal/report"
)

const (
	header   = "Manifest ID,Origin,Destination,HS Code,Description,Quantity,UOM,Value,Tariff Rate,Duty\n"
	cleanRow = "M-1,CN,US,0847120,Laptops,10,PCS,1000,5,50.00\n"
	shipment = header +
		",CN,US,847120,Laptops,10,PCS,1000,5,\n" +
		"M-2,DE,US,0902300000,Green tea,200,KG,500,2,10.00\n" +
		",CN,US,847120,Laptops,10,PCS,1000,5,\n"
)

type narratorFunc func(ctx context.Context, r *report.Report) (string, error)

func (f narratorFunc) Narrate(ctx context.Context, r *report.Report) (string, error) { return f(ctx, r) }

func newTestService(t *testing.T, opts Options) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	opts.Metrics = m
	if opts.Store == nil {
		opts.Store = NewMemoryStore(8)
	}
	return NewService(opts), m
}

func TestAnalyze_CleanDocument(t *testing.T) {
	svc, m := newTestService(t, Options{})

	rep, err := svc.Analyze(context.Background(), "clean.csv", []byte(header+cleanRow), AnalyzeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.RecordCount)
	assert.Equal(t, 100, rep.Score)
	assert.Empty(t, rep.Errors)
	assert.False(t, rep.FallbackUsed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsAnalyzed.WithLabelValues("delimited", "ok")))
	assert.Equal(t, 0, svc.LimiterStatus().Active)
}

func TestAnalyze_ParseFailuresAreReports(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     string
		wantCode string
	}{
		{"unsupported extension", "manifest.docx", "anything", "PARSE001"},
		{"whitespace only", "manifest.csv", "  \n\n", "PARSE002"},
		{"empty content", "manifest.csv", "", "PARSE002"},
		{"header without rows", "manifest.csv", header, "PARSE002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(t, Options{})

			rep, err := svc.Analyze(context.Background(), tt.fileName, []byte(tt.data), AnalyzeOptions{})
			require.NoError(t, err)

			assert.Zero(t, rep.RecordCount)
			assert.Zero(t, rep.Score)
			require.Len(t, rep.Errors, 1)
			assert.Equal(t, tt.wantCode, rep.Errors[0].Code)
			assert.Equal(t, manifest.SeverityCritical, rep.Errors[0].Severity)
			assert.Equal(t, 0.0, testutil.ToFloat64(m.DocumentsAnalyzed.WithLabelValues("delimited", "ok")))
		})
	}
}

func TestAnalyze_InputErrors(t *testing.T) {
	svc, _ := newTestService(t, Options{MaxFileSize: 16})

	_, err := svc.Analyze(context.Background(), "", nil, AnalyzeOptions{})
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Analyze(context.Background(), "big.csv", []byte(header+cleanRow), AnalyzeOptions{})
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, "FILE001", MapError(err).Code)
}

func TestAnalyze_LimiterSaturated(t *testing.T) {
	limiter := NewDocumentLimiter(1, 20*time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	svc, m := newTestService(t, Options{Limiter: limiter})

	_, err := svc.Analyze(context.Background(), "clean.csv", []byte(header+cleanRow), AnalyzeOptions{})
	assert.ErrorIs(t, err, ErrTooManyDocuments)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LimiterRejections))
}

func TestAnalyze_PersistAndFetch(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	rep, err := svc.Analyze(ctx, "shipment.csv", []byte(shipment), AnalyzeOptions{Persist: true})
	require.NoError(t, err)

	got, err := svc.Report(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Score, got.Score)
	assert.Len(t, got.Duplicates, 1)

	_, err = svc.Report(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrReportNotFound)

	unsaved, err := svc.Analyze(ctx, "shipment.csv", []byte(shipment), AnalyzeOptions{})
	require.NoError(t, err)
	_, err = svc.Report(ctx, unsaved.ID)
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestReport_StoreDisabled(t *testing.T) {
	svc := NewService(Options{})
	_, err := svc.Report(context.Background(), "4b0e2c1e-55a8-4c38-8f57-3f1a5f0a9a10")
	assert.ErrorIs(t, err, ErrStoreDisabled)
}

func TestAnalyze_Narrative(t *testing.T) {
	t.Run("narrator summary replaces rule text", func(t *testing.T) {
		svc, _ := newTestService(t, Options{Narrator: narratorFunc(func(context.Context, *report.Report) (string, error) {
			return "One clean laptop line.", nil
		})})

		rep, err := svc.Analyze(context.Background(), "clean.csv", []byte(header+cleanRow), AnalyzeOptions{Narrative: true})
		require.NoError(t, err)
		assert.Equal(t, "One clean laptop line.", rep.Feedback.Summary)
		assert.False(t, rep.FallbackUsed)
	})

	t.Run("failure keeps rule text", func(t *testing.T) {
		svc, m := newTestService(t, Options{Narrator: narratorFunc(func(context.Context, *report.Report) (string, error) {
			return "", errors.New("upstream 503")
		})})

		rep, err := svc.Analyze(context.Background(), "clean.csv", []byte(header+cleanRow), AnalyzeOptions{Narrative: true})
		require.NoError(t, err)
		assert.True(t, rep.FallbackUsed)
		assert.True(t, strings.HasPrefix(rep.Feedback.Summary, "1 records checked"))
		assert.Equal(t, 100, rep.Score)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.CollabFallbacks.WithLabelValues("narrative")))
	})

	t.Run("no narrator configured", func(t *testing.T) {
		svc, _ := newTestService(t, Options{})
		rep, err := svc.Analyze(context.Background(), "clean.csv", []byte(header+cleanRow), AnalyzeOptions{Narrative: true})
		require.NoError(t, err)
		assert.True(t, rep.FallbackUsed)
	})
}

func TestCorrect(t *testing.T) {
	svc, m := newTestService(t, Options{})
	ctx := context.Background()

	out, err := svc.Correct(ctx, "shipment.csv", []byte(shipment), "")
	require.NoError(t, err)
	assert.Equal(t, manifest.FormatCSV, out.Format)
	assert.Equal(t, 6, out.IssuesFixed)
	assert.Equal(t, 1, out.DuplicatesRemoved)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsCorrected.WithLabelValues("csv")))

	xml, err := svc.Correct(ctx, "shipment.csv", []byte(shipment), "XML")
	require.NoError(t, err)
	assert.Equal(t, "shipment_corrected.xml", xml.FileName)
	assert.Equal(t, "application/xml", xml.MimeType)

	fallback, err := svc.Correct(ctx, "shipment.csv", []byte(shipment), "docx")
	require.NoError(t, err)
	assert.Equal(t, manifest.FormatJSON, fallback.Format)
}

func TestCorrect_AppliesEveryReportedFix(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	data := []byte("Manifest ID,Origin,Destination,HS Code,Description,Quantity,UOM,Value,Tariff Rate,Duty,Date\n" +
		"M-1,China,US,0847120000,Laptops,10,PCS,1000,5,48.00,03/15/2024\n")

	rep, err := svc.Analyze(ctx, "lines.csv", data, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Contains(t, rep.Feedback.NextSteps, "Download the corrected file to apply 3 automatic fixes.")

	out, err := svc.Correct(ctx, "lines.csv", data, "")
	require.NoError(t, err)
	assert.Equal(t, 3, out.IssuesFixed)

	again, err := svc.Analyze(ctx, out.FileName, out.Content, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Empty(t, again.Errors)
	assert.Equal(t, "2024-03-15", again.Records[0]["Date"])
}

func TestCorrect_Errors(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Correct(ctx, "empty.csv", []byte{}, "")
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = svc.Correct(ctx, "broken.json", []byte("{not json"), "")
	assert.ErrorIs(t, err, parser.ErrNoRecords)
	assert.Equal(t, "PARSE004", MapError(err).Code)
}

func TestFix_WithoutCollaborator(t *testing.T) {
	svc, m := newTestService(t, Options{})

	res, err := svc.Fix(context.Background(), FixRequest{
		Record: map[string]any{
			"HS Code":     "847120",
			"Description": "Laptops",
			"Quantity":    10,
			"UOM":         "",
			"Origin":      "CN",
			"Destination": "US",
			"Value":       1000,
		},
		Score: 90,
	})
	require.NoError(t, err)

	assert.Equal(t, fixloop.StateExhausted, res.State)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, 95, res.Score)
	assert.Equal(t, "0847120", res.Fields[manifest.FieldHSCode])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FixSessions.WithLabelValues(fixloop.StateExhausted)))
}

func TestFix_KeepsCallerKeyOrder(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	var req FixRequest
	body := `{"record": {"Total Value": 1000, "Declared Amount": 900, "HS Code": "0847120000"}, "score": 10}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, []string{"Total Value", "Declared Amount", "HS Code"}, req.Keys)
	assert.Equal(t, 10, req.Score)

	res, err := svc.Fix(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1000", res.Fields[manifest.FieldTotalValue])
}

func TestOrderedRecord(t *testing.T) {
	got, err := orderedRecord(map[string]any{"b": 1, "a": "x", "c": true}, []string{"c", "missing", "c"})
	require.NoError(t, err)
	assert.Equal(t, `{"c":true,"a":"x","b":1}`, string(got))
}

func TestFix_InvalidRequest(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	tests := []struct {
		name string
		req  FixRequest
	}{
		{"missing record", FixRequest{}},
		{"empty record", FixRequest{Record: map[string]any{}}},
		{"score out of range", FixRequest{Record: map[string]any{"hs_code": "0847120"}, Score: 250}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Fix(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, "VAL001", MapError(err).Code)
		})
	}
}
