package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bhandras/delaydeck/internal/delay"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, dir
}

func TestOpenCreatesKeyWithOwnerOnlyMode(t *testing.T) {
	_, dir := openTemp(t)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestOpenReusesExistingKey(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir)
	require.NoError(t, err)
	key := *first.key
	require.NoError(t, first.Close())

	second, err := Open(dir)
	require.NoError(t, err)
	defer second.Close()
	require.Equal(t, key, *second.key)
}

func TestOpenRejectsCorruptKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("not base64!"), 0o600))

	_, err := Open(dir)
	require.Error(t, err)
}

func TestMigrationsAreRecordedOnce(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		st, err := Open(dir)
		require.NoError(t, err)

		var count int
		err = st.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		require.NoError(t, err)
		require.Equal(t, len(migrations), count)
		require.NoError(t, st.Close())
	}
}

func TestGetSetDelete(t *testing.T) {
	st, _ := openTemp(t)
	ctx := context.Background()

	_, ok, err := st.Get(ctx, "obs:port")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.Set(ctx, "obs:port", "4455"))
	require.NoError(t, st.Set(ctx, "obs:port", "4456"))
	v, ok, err := st.Get(ctx, "obs:port")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "4456", v)

	require.NoError(t, st.Delete(ctx, "obs:port"))
	require.NoError(t, st.Delete(ctx, "obs:port"))
	_, ok, err = st.Get(ctx, "obs:port")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadSettingsDefaults(t *testing.T) {
	st, _ := openTemp(t)

	got, err := st.LoadSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), got)
	require.Equal(t, 4455, got.Port)
	require.Equal(t, delay.DefaultDelaySeconds, got.Delay.DelaySeconds)
}

func TestSaveAndLoadSettings(t *testing.T) {
	st, dir := openTemp(t)
	ctx := context.Background()

	want := Settings{
		Port:     4460,
		Password: "s3cret",
		Delay: delay.DelayConfig{
			RecordScene:  "Live",
			DelayScene:   "Delay",
			DelayInput:   "Cam1",
			BridgeInput:  "Cam2",
			DelaySeconds: 45,
		},
	}
	require.NoError(t, st.SaveSettings(ctx, want))

	got, err := st.LoadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Survives a reopen.
	require.NoError(t, st.Close())
	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err = reopened.LoadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestPasswordIsSealedAtRest(t *testing.T) {
	st, _ := openTemp(t)
	ctx := context.Background()

	s := DefaultSettings()
	s.Password = "hunter2"
	require.NoError(t, st.SaveSettings(ctx, s))

	raw, ok, err := st.Get(ctx, KeyPassword)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, raw)
	require.False(t, strings.Contains(raw, "hunter2"))

	// Two saves never produce the same ciphertext.
	require.NoError(t, st.SaveSettings(ctx, s))
	again, _, err := st.Get(ctx, KeyPassword)
	require.NoError(t, err)
	require.NotEqual(t, raw, again)
}

func TestEmptyPasswordStoredEmpty(t *testing.T) {
	st, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSettings(ctx, DefaultSettings()))
	raw, ok, err := st.Get(ctx, KeyPassword)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "", raw)
}

func TestSaveSettingsValidates(t *testing.T) {
	st, _ := openTemp(t)
	ctx := context.Background()

	bad := DefaultSettings()
	bad.Delay.DelaySeconds = 7
	require.ErrorIs(t, st.SaveSettings(ctx, bad), delay.ErrInvalidDelay)

	bad = DefaultSettings()
	bad.Port = 0
	require.Error(t, st.SaveSettings(ctx, bad))

	_, ok, err := st.Get(ctx, KeyPort)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadSettingsSkipsUnparseableValues(t *testing.T) {
	st, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, KeyPort, "not-a-port"))
	require.NoError(t, st.Set(ctx, KeyDelaySec, "7"))
	require.NoError(t, st.Set(ctx, KeyPassword, "garbage"))
	require.NoError(t, st.Set(ctx, KeyDelayScene, "Delay"))

	got, err := st.LoadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultPort, got.Port)
	require.Equal(t, delay.DefaultDelaySeconds, got.Delay.DelaySeconds)
	require.Empty(t, got.Password)
	require.Equal(t, "Delay", got.Delay.DelayScene)
}

func TestSealOpen(t *testing.T) {
	key, err := GenerateSecretKey()
	require.NoError(t, err)

	sealed, err := seal("pässwörd", key)
	require.NoError(t, err)
	plain, err := open(sealed, key)
	require.NoError(t, err)
	require.Equal(t, "pässwörd", plain)

	other, err := GenerateSecretKey()
	require.NoError(t, err)
	_, err = open(sealed, other)
	require.ErrorIs(t, err, ErrDecrypt)

	_, err = open("c2hvcnQ=", key)
	require.ErrorIs(t, err, ErrDecrypt)
}
