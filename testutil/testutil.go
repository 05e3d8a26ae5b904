// Package testutil holds helpers shared by presence tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/presence/pkg/models"
)

// RandomString returns a random hex string of the given length.
func RandomString(length int) string {
	b := make([]byte, (length+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)[:length]
}

// SocketPath returns a unix socket path in a fresh directory under the
// system temp dir. t.TempDir paths can exceed the socket path limit on macOS.
func SocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "p"+RandomString(4))
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

// Logger returns a logger entry that discards its output.
func Logger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// WriteTicks writes ticks as JSON Lines to name in dir and returns the path.
func WriteTicks(t *testing.T, dir, name string, ticks ...models.Tick) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, tick := range ticks {
		require.NoError(t, enc.Encode(tick))
	}
	return path
}
