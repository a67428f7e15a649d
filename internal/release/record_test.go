package release

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_AttachConcurrent(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	record := NewRecord("v1.4.0", "abc123")
	const n = 64

	// --- Act ---
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record.Attach(Artifact{
				Kind: KindBinary,
				Name: fmt.Sprintf("artifact-%d", i),
			})
		}(i)
	}
	wg.Wait()
	final := record.Finalize()

	// --- Assert ---
	// No attach may be lost under concurrent completion.
	require.Len(t, final.Artifacts, n)
	seen := make(map[string]bool, n)
	for _, a := range final.Artifacts {
		seen[a.Name] = true
	}
	assert.Len(t, seen, n, "every artifact should be distinct")
}

func TestRecord_FinalizeIdempotent(t *testing.T) {
	t.Parallel()

	record := NewRecord("v1.4.0", "abc123")
	record.Attach(Artifact{Kind: KindArchive, Name: "src.tar.gz"})

	first := record.Finalize()
	second := record.Finalize()

	assert.Same(t, first, second)
	assert.Len(t, second.Artifacts, 1)
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tgt, err := ParseTarget("x86_64-linux")
	require.NoError(t, err)
	assert.Equal(t, Target{OS: "linux", Arch: "x86_64"}, tgt)

	tgt, err = ParseTarget("aarch64-apple")
	require.NoError(t, err)
	assert.Equal(t, Target{OS: "macos", Arch: "aarch64"}, tgt)

	_, err = ParseTarget("x86_64-plan9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported target os")

	_, err = ParseTarget("justonepart")
	require.Error(t, err)
}
