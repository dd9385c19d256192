package snapshotdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(code string, price string) Record {
	return Record{"ItemCode": code, "UnitPrice": price}
}

func computeRecords(current, previous []Record) Result[Record] {
	return Compute(current, previous, KeyBy("ItemCode"), RecordsEqual)
}

func TestComputeDisjointKeys(t *testing.T) {
	current := []Record{rec("A", "10"), rec("B", "20"), rec("C", "30")}
	previous := []Record{rec("X", "10"), rec("Y", "20")}

	result := computeRecords(current, previous)

	assert.Empty(t, result.Changed)
	assert.Len(t, result.New, len(current))
	assert.Len(t, result.Deleted, len(previous))
}

func TestComputeIdenticalSnapshots(t *testing.T) {
	snapshot := []Record{rec("A", "10"), rec("B", "20")}
	other := []Record{rec("A", "10"), rec("B", "20")}

	result := computeRecords(snapshot, other)

	assert.Empty(t, result.New)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Changed)
	assert.True(t, result.Empty())
}

func TestComputeChangedEmitsPreviousRow(t *testing.T) {
	current := []Record{rec("A", "15"), rec("B", "20"), rec("N", "5")}
	previous := []Record{rec("A", "10"), rec("B", "20"), rec("D", "1")}

	result := computeRecords(current, previous)

	require.Len(t, result.Changed, 1)
	assert.Equal(t, "10", result.Changed[0].String("UnitPrice"))
	require.Len(t, result.New, 1)
	assert.Equal(t, "N", result.New[0].String("ItemCode"))
	require.Len(t, result.Deleted, 1)
	assert.Equal(t, "D", result.Deleted[0].String("ItemCode"))
}

func TestComputeFirstPreviousMatchWins(t *testing.T) {
	current := []Record{rec("A", "30")}
	previous := []Record{rec("A", "10"), rec("A", "20")}

	result := computeRecords(current, previous)

	require.Len(t, result.Changed, 1)
	assert.Equal(t, "10", result.Changed[0].String("UnitPrice"))
	assert.Empty(t, result.Deleted)
}

func TestComputeKeyOnlyPairing(t *testing.T) {
	// Two current rows share a key with one differing previous row; both pair with it.
	current := []Record{rec("A", "11"), rec("A", "12")}
	previous := []Record{rec("A", "10")}

	result := computeRecords(current, previous)

	assert.Len(t, result.Changed, 2)
	assert.Empty(t, result.New)
	assert.Empty(t, result.Deleted)
}

func TestComputeEmptyPrevious(t *testing.T) {
	result := computeRecords([]Record{rec("A", "1")}, nil)
	assert.Len(t, result.New, 1)
	assert.Empty(t, result.Deleted)
}

func TestDecodeRecordsKeepsNumbersExact(t *testing.T) {
	records, err := DecodeRecords([]byte(`[{"ItemCode":"1001","UnitPrice":12500.50,"IsRestricted":1,"SchemeID":1001}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 12500.50, records[0].Float("UnitPrice"))
	assert.Equal(t, "1001", records[0].String("SchemeID"))
	assert.True(t, records[0].Bool("IsRestricted"))

	empty, err := DecodeRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
