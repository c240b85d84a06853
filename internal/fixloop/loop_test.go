package fixloop

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/manifestcheck/internal/collab"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/mapping"
	"github.com/JonMunkholm/manifestcheck/internal/parser"
	"github.com/JonMunkholm/manifestcheck/internal/reference"
	"github.com/JonMunkholm/manifestcheck/internal/rules"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Complete(ctx context.Context, p collab.Prompt) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

// request builds a mapped single-record request the way the service does.
func request(t *testing.T, fields map[string]any) Request {
	t.Helper()
	doc, err := parser.FromValue("record.json", fields)
	require.NoError(t, err)
	mapped, cols := mapping.DefaultPatterns().MapDocument(doc)
	require.Len(t, mapped.Records, 1)
	return Request{Record: mapped.Records[0], Columns: cols}
}

// laptops scores 75: the HS code needs padding and the unit is missing.
func laptops() map[string]any {
	return map[string]any{
		"hs_code":     "847120",
		"description": "Laptops",
		"quantity":    10,
		"uom":         "",
		"origin":      "CN",
		"destination": "US",
		"total_value": 1000,
	}
}

func testLoop(client collab.Client, attempts int) *Loop {
	return New(client, reference.Builtin(), rules.New(rules.Options{}), Config{
		MaxAttempts:   attempts,
		Reasks:        2,
		CallTimeout:   time.Second,
		LookupTimeout: time.Second,
	})
}

func TestRun_ConvergesWithCollaborator(t *testing.T) {
	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.MatchedBy(func(p collab.Prompt) bool {
		return strings.Contains(p.User, "UOM_MISSING") && strings.Contains(p.User, "8471")
	})).Return("```json\n{\"record\": {\"uom\": \"PCS\"}, \"score\": 10}\n```", nil).Once()

	req := request(t, laptops())
	res, err := testLoop(client, 5).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 75, res.InitialScore)
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Success)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.FallbackUsed)
	assert.Empty(t, res.Issues)
	assert.NotEmpty(t, res.SessionID)

	assert.Equal(t, "0847120", res.Record.Get(manifest.FieldHSCode))
	assert.Equal(t, "PCS", res.Record.Get(manifest.FieldUOM))
	assert.Equal(t, "PCS", res.Record.Raw["uom"])

	require.Len(t, res.History, 1)
	assert.Equal(t, []manifest.Field{manifest.FieldHSCode}, res.History[0].Autofix)
	assert.Equal(t, []manifest.Field{manifest.FieldUOM}, res.History[0].Changed)
	assert.Equal(t, 10.0, res.History[0].Claimed)
	client.AssertExpectations(t)
}

func TestRun_UnavailableCollaborator(t *testing.T) {
	res, err := testLoop(collab.Nop{}, 5).Run(context.Background(), request(t, laptops()))
	require.NoError(t, err)

	assert.Equal(t, 95, res.Score)
	assert.False(t, res.Success)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, rules.CodeUOMMissing, res.Issues[0].Code)
}

func TestRun_NilClient(t *testing.T) {
	res, err := New(nil, nil, nil, Config{}).Run(context.Background(), request(t, laptops()))
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, res.State)
	assert.True(t, res.FallbackUsed)
}

func TestRun_ReasksMalformedThenFallsBack(t *testing.T) {
	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.Anything).Return("I fixed it for you!", nil)

	res, err := testLoop(client, 2).Run(context.Background(), request(t, laptops()))
	require.NoError(t, err)

	// one call plus two re-asks per attempt
	client.AssertNumberOfCalls(t, "Complete", 6)
	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 95, res.Score)
	assert.True(t, res.FallbackUsed)
	assert.Contains(t, res.History[0].Error, "malformed")
}

func TestRun_ReaskSucceeds(t *testing.T) {
	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.MatchedBy(func(p collab.Prompt) bool {
		return !strings.Contains(p.User, "could not be used")
	})).Return(`{"score": 100}`, nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(p collab.Prompt) bool {
		return strings.Contains(p.User, "could not be used")
	})).Return(`{"record": {"uom": "PCS"}}`, nil).Once()

	res, err := testLoop(client, 5).Run(context.Background(), request(t, laptops()))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.FallbackUsed)
	client.AssertExpectations(t)
}

func TestRun_WorseProposalIgnored(t *testing.T) {
	fields := laptops()
	fields["hs_code"] = "0847120"

	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.Anything).
		Return(`{"record": {"origin": "Narnia", "uom": "PCS"}, "score": 100}`, nil)

	res, err := testLoop(client, 2).Run(context.Background(), request(t, fields))
	require.NoError(t, err)

	assert.Equal(t, 95, res.InitialScore)
	assert.Equal(t, 95, res.Score)
	assert.Equal(t, "CN", res.Record.Get(manifest.FieldOrigin))
	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, 2, res.Attempts)
	assert.False(t, res.Success)
}

func TestRun_AlreadyCompliant(t *testing.T) {
	fields := laptops()
	fields["hs_code"] = "0847120"
	fields["uom"] = "PCS"

	client := &mockClient{}
	req := request(t, fields)
	req.DeclaredScore = 40

	res, err := testLoop(client, 5).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 100, res.Score)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestRun_DeclaredScoreNotTrusted(t *testing.T) {
	req := request(t, laptops())
	req.DeclaredScore = 100

	res, err := testLoop(collab.Nop{}, 5).Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Less(t, res.Score, 100)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &mockClient{}
	res, err := testLoop(client, 5).Run(ctx, request(t, laptops()))
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 75, res.Score)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestRun_CancelMidSessionKeepsBest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	res, err := testLoop(client, 5).Run(ctx, request(t, laptops()))
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, 1, res.Attempts)
	// the autofix from the interrupted attempt is kept
	assert.Equal(t, 95, res.Score)
	assert.True(t, res.FallbackUsed)
}

func TestRun_WithoutColumns(t *testing.T) {
	rec := manifest.NewRecord(1, nil).
		WithField(manifest.FieldHSCode, "847120").
		WithField(manifest.FieldOrigin, "CN")

	res, err := testLoop(collab.Nop{}, 1).Run(context.Background(), Request{Record: rec})
	require.NoError(t, err)
	assert.Equal(t, "0847120", res.Record.Get(manifest.FieldHSCode))
	assert.Equal(t, "0847120", res.Record.Raw["hs_code"])
}

func TestMachine(t *testing.T) {
	m := newMachine()
	ctx := context.Background()

	require.NoError(t, m.Event(ctx, eventStart))
	require.NoError(t, m.Event(ctx, eventCorrect))
	assert.Error(t, m.Event(ctx, eventSucceed), "cannot succeed while correcting")
	require.NoError(t, m.Event(ctx, eventRescore))
	require.NoError(t, m.Event(ctx, eventSucceed))
	assert.True(t, terminal(m.Current()))
	assert.Error(t, m.Event(ctx, eventCorrect))
}
