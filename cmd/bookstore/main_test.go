package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore/internal/config"
)

func writeConfig(t *testing.T, storage string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bookstore.yaml")
	yaml := `services:
  auth: http://auth.internal
  catalog: http://catalog.internal
  shipping: http://shipping.internal
  orders: http://orders.internal
  payments: http://payments.internal
storage:
` + storage
	if storage == "" {
		yaml += "  backend: file\n  path: " + filepath.Join(dir, "state.json") + "\n  session_secret: test-secret-0123456789\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"serve"}, {"version"}, {"settings", "show"}, {"settings", "set"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bookstore "+Version)
}

type storedSettings struct {
	Categories     []string `json:"enabledCategories"`
	PaymentMethods []string `json:"enabledPaymentMethods"`
}

func TestSettingsSetThenShow(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := run(t, "--config", cfg, "settings", "set", "--categories", "ficcao, tecnico, unknown", "--payment-methods", "pix")
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "settings", "show")
	require.NoError(t, err)
	var got storedSettings
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"FICCAO", "TECNICO"}, got.Categories)
	assert.Equal(t, []string{"pix"}, got.PaymentMethods)

	_, err = run(t, "--config", cfg, "settings", "set", "--categories", "all")
	require.NoError(t, err)

	out, err = run(t, "--config", cfg, "settings", "show")
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabledCategories": null, "enabledPaymentMethods": ["pix"]}`, out)
}

func TestSettingsSetNeedsAFlag(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := run(t, "--config", cfg, "settings", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")
}

func TestSettingsRejectMemoryBackend(t *testing.T) {
	cfg := writeConfig(t, "  backend: memory\n")
	_, err := run(t, "--config", cfg, "settings", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent storage backend")
}

func TestParseVisibility(t *testing.T) {
	assert.False(t, parseVisibility("all").IsConfigured())
	none := parseVisibility("none")
	assert.True(t, none.IsConfigured())
	assert.Empty(t, none.Values())
	assert.Equal(t, []string{"card", "pix"}, parseVisibility(" card, ,pix ").Values())
}

func TestOpenStorageSealsSessions(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	st, err := openStorage(config.StorageConfig{Backend: "memory"}, logger)
	require.NoError(t, err)
	assert.Same(t, st.KV, st.Sessions)
	require.NoError(t, st.Close())

	st, err = openStorage(config.StorageConfig{
		Backend:       "sqlite",
		Path:          filepath.Join(t.TempDir(), "bookstore.db"),
		SessionSecret: "test-secret-0123456789",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	assert.NotSame(t, st.KV, st.Sessions)

	ctx := t.Context()
	require.NoError(t, st.Sessions.Put(ctx, "k", []byte("secret-token")))
	raw, ok, err := st.KV.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), "secret-token")
}
