package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	err := Validate(map[string]string{"access_token": "tok", "client_id": "id"})
	require.NoError(t, err)

	err = Validate(map[string]string{"access_token": "tok"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "client_id")
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	err := os.WriteFile(path, []byte(`{
		"chrome": {"access_token": "tok", "client_id": "id", "csrftoken": "csrf"},
		"firefox": {"access_token": "tok"}
	}`), 0o600)
	require.NoError(t, err)

	p := FileProvider{Path: path}

	cookies, err := p.LoadCookies(context.Background(), "chrome")
	require.NoError(t, err)
	require.Equal(t, "tok", cookies["access_token"])

	_, err = p.LoadCookies(context.Background(), "firefox")
	require.Error(t, err)
	require.Contains(t, err.Error(), "client_id")

	_, err = p.LoadCookies(context.Background(), "safari")
	require.Error(t, err)
}
