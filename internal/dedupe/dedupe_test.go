package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

func record(row int, id, origin, dest, hs, desc, value string) manifest.Record {
	return manifest.NewRecord(row, nil).
		WithField(manifest.FieldManifestID, id).
		WithField(manifest.FieldOrigin, origin).
		WithField(manifest.FieldDestination, dest).
		WithField(manifest.FieldHSCode, hs).
		WithField(manifest.FieldDescription, desc).
		WithField(manifest.FieldTotalValue, value)
}

func TestDetect_DifferentManifestIDs(t *testing.T) {
	records := []manifest.Record{
		record(2, "M-1", "CN", "US", "0847120", "Laptop", "1000"),
		record(3, "M-2", "CN", "US", "0847120", "Laptop", "1000"),
	}
	groups := Detect(records)
	require.Len(t, groups, 1)
	assert.Equal(t, []int{2, 3}, groups[0].Rows)

	issues := Issues(groups)
	require.Len(t, issues, 1)
	assert.Equal(t, CodeDuplicate, issues[0].Code)
	assert.Equal(t, []int{2, 3}, issues[0].Rows)
}

func TestDetect_CaseInsensitive(t *testing.T) {
	records := []manifest.Record{
		record(1, "", "cn", "us", "0847120", "LAPTOP", "1000"),
		record(2, "", "CN", "US", "0847120", "laptop ", "1000"),
	}
	assert.Len(t, Detect(records), 1)
}

func TestDetect_TransitiveRegardlessOfOrder(t *testing.T) {
	a := record(1, "A", "CN", "US", "0847120", "Laptop", "1000")
	b := record(2, "B", "CN", "US", "0847120", "Laptop", "1000")
	c := record(3, "C", "CN", "US", "0847120", "Laptop", "1000")
	other := record(4, "D", "VN", "US", "0847120", "Laptop", "1000")

	orders := [][]manifest.Record{
		{a, b, c, other},
		{c, other, a, b},
		{other, b, c, a},
	}
	for _, recs := range orders {
		groups := Detect(recs)
		require.Len(t, groups, 1)
		assert.ElementsMatch(t, []int{1, 2, 3}, groups[0].Rows)
	}
}

func TestDetect_SeparatorPreventsBleed(t *testing.T) {
	r1 := record(1, "", "CN", "US", "0847120", "Laptop 1", "000")
	r2 := record(2, "", "CN", "US", "0847120", "Laptop", "1000")
	assert.Empty(t, Detect([]manifest.Record{r1, r2}))
}

func TestDetect_BlankRecordsIgnored(t *testing.T) {
	records := []manifest.Record{manifest.NewRecord(1, nil), manifest.NewRecord(2, nil)}
	assert.Empty(t, Detect(records))
}

func TestUnique_KeepsFirst(t *testing.T) {
	records := []manifest.Record{
		record(1, "A", "CN", "US", "0847120", "Laptop", "1000"),
		record(2, "B", "CN", "US", "0847120", "Phone", "200"),
		record(3, "C", "CN", "US", "0847120", "Laptop", "1000"),
	}
	kept, removed := Unique(records)
	assert.Equal(t, 1, removed)
	require.Len(t, kept, 2)
	assert.Equal(t, "A", kept[0].Get(manifest.FieldManifestID))
	assert.Equal(t, "B", kept[1].Get(manifest.FieldManifestID))
}

func TestFingerprintStable(t *testing.T) {
	k := BusinessKey(record(1, "", "CN", "US", "0847120", "Laptop", "1000"))
	assert.Equal(t, Fingerprint(k), Fingerprint(k))
	assert.NotEqual(t, Fingerprint(k), Fingerprint(k+"x"))
}
