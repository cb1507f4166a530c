package sim

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden compares result.Trace against a recorded golden file named
// after name: canonical JSON serialization of the trace, with goldie
// handling the compare-or-update cycle ("go test ./internal/sim -update"
// regenerates the fixtures).
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()
	g := goldie.New(t)

	payload, err := json.MarshalIndent(result.Trace, "", "  ")
	if err != nil {
		t.Fatalf("sim: marshal trace for golden comparison: %v", err)
	}
	g.Assert(t, name, payload)
}
