package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Client Form 2024.pdf", "client_form_2024"},
		{"  Spaced  Out .PDF", "spaced_out"},
		{"UPPER.TIFF", "upper"},
		{"weird:*?chars.png", "weirdchars"},
		{"already_normal.jpg", "already_normal"},
		{"no-extension", "no-extension"},
		{".pdf", "unnamed"},
		{"???.pdf", "unnamed"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, NormalizeFilename(tc.in), "input: %q", tc.in)
	}
}

func TestNormalizeFilenameStripsDirectories(t *testing.T) {
	require.Equal(t, "evil", NormalizeFilename("../../etc/evil.pdf"))
}

func TestNormalizeFilenameDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		require.Equal(t, NormalizeFilename("Some File.pdf"), NormalizeFilename("Some File.pdf"))
	}
}

func TestStoredNameAlwaysPDF(t *testing.T) {
	require.True(t, strings.HasSuffix(StoredName("Scan 001.jpg"), ".pdf"))
	require.True(t, strings.HasSuffix(StoredName("Scan 001.pdf"), ".pdf"))
	require.True(t, strings.HasPrefix(StoredName("Scan 001.jpg"), "scan_001-"))
}

func TestStoredNameDeterministic(t *testing.T) {
	require.Equal(t, StoredName("Client Form.pdf"), StoredName("Client Form.pdf"))
	require.Equal(t, StoredBase("doc.pdf")+".pdf", StoredName("doc.pdf"))
}

func TestStoredNameDisambiguatesFoldedOriginals(t *testing.T) {
	require.NotEqual(t, StoredName("Report.pdf"), StoredName("report.pdf"))
	require.NotEqual(t, StoredName("a b.pdf"), StoredName("a_b.pdf"))
	require.NotEqual(t, StoredName("doc.pdf"), StoredName("doc.jpg"))

	require.Equal(t, NormalizeFilename("Report.pdf"), NormalizeFilename("report.pdf"))
}
