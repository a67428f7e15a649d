package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.3", Normalize("v1.2.3"))
	assert.Equal(t, "1.2.3", Normalize("1.2.3"))
	assert.Equal(t, "1.2.3-rc1", Normalize("v1.2.3-rc1"))
}

func TestIsStable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag    string
		stable bool
	}{
		{"1.2.3", true},
		{"v1.2.3", true},
		{"1.2.3-rc1", false},
		{"v1.2.3-alpha.2", false},
		{"1.4.0", true},
		// Not valid semver, so the delimiter fallback applies.
		{"2024.06", true},
		{"2024.06-beta", false},
	}

	for _, tc := range cases {
		t.Run(tc.tag, func(t *testing.T) {
			assert.Equal(t, tc.stable, IsStable(tc.tag))
		})
	}
}

func TestArchiveName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "oxidb_1.4.0.tar.gz", ArchiveName("oxidb", "v1.4.0", "tar.gz"))
	assert.Equal(t, "oxidb_1.4.0.zip", ArchiveName("oxidb", "1.4.0", "zip"))
}

func TestBinaryName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "oxidb_server_1.4.0_x86_64_linux", BinaryName("oxidb_server", "v1.4.0", "x86_64", "linux"))
	assert.Equal(t, "oxidb_server_1.4.0_x86_64_windows.exe", BinaryName("oxidb_server", "1.4.0", "x86_64", "windows"))
}
