// Package testutil provides fixtures shared by the package tests: the
// sample record type, its dataset, and deterministic clocks and ID
// generators for journaled requests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/remoteq/internal/types"
)

// TestData is the record type of the sample dataset.
type TestData struct {
	Name string
	Tag  int
	Xs   []int
}

// TestDataName is the registry name of TestData.
const TestDataName = "TestData"

// Sample returns the two records every round-trip scenario starts from.
// The slice is fresh on every call.
func Sample() []TestData {
	return []TestData{
		{Name: "Test1", Tag: 12, Xs: []int{35, 66, 2567}},
		{Name: "Test2", Tag: 76789, Xs: []int{35, 18, 19}},
	}
}

// SampleWithCoronary returns Sample plus the record the sort scenarios add.
func SampleWithCoronary() []TestData {
	return append(Sample(), TestData{Name: "Coronary", Tag: 8921})
}

// Registry returns a registry with TestData registered, and the record's
// type descriptor.
func Registry(t testing.TB) (*types.Registry, *types.Type) {
	t.Helper()
	reg := types.NewRegistry()
	rec, err := types.Struct[TestData](reg, TestDataName)
	require.NoError(t, err)
	return reg, rec
}

// Tags projects records to their Tag values, in order.
func Tags(records []TestData) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.Tag
	}
	return out
}

// Names projects records to their Name values, in order.
func Names(records []TestData) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}
