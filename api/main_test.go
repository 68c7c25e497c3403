package api

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ncastellan/netrecon/db"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func mustMarshal(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(payload)
}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "netrecon-api-test")
	if err != nil {
		panic(err)
	}
	viper.Set("database.path", filepath.Join(dir, "test.db"))
	viper.Set("scan.output_dir", dir)
	viper.Set("scan.parallelism", 8)
	viper.Set("api.auth.jwt_secret_key", "api-test-secret")
	viper.Set("api.auth.access_token_minutes", 5)
	viper.Set("api.auth.refresh_token_days", 1)
	if _, err := db.InitDb(); err != nil {
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}
