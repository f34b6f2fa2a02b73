package utilities

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLogAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, CreateLog(dir, "huasheng", "first"))
	require.NoError(t, CreateLog(dir, "huasheng", "second"))

	raw, err := os.ReadFile(filepath.Join(dir, "huasheng_"+time.Now().Format("20060102")+".log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " - first"))
	assert.True(t, strings.HasSuffix(lines[1], " - second"))
}

func TestFrameLine(t *testing.T) {
	assert.Equal(t, "10.0.0.1:5000 len=3 hex=c001ff", FrameLine("10.0.0.1:5000", []byte{0xC0, 0x01, 0xFF}))
}
