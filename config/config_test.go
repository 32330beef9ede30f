package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestDefaultsNeedAnAPIKey(t *testing.T) {
	o := Defaults()
	assert.Error(t, o.Validate())
	o.APIKey = "secret"
	assert.NoError(t, o.Validate())
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.APIKey = "secret"
	data := []struct {
		name   string
		modify func(*Options)
	}{
		{"no dir", func(o *Options) { o.Dir = "" }},
		{"no port", func(o *Options) { o.Port = 0 }},
		{"port too large", func(o *Options) { o.Port = 70000 }},
		{"relative url", func(o *Options) { o.BaseURL = "/services/rest" }},
		{"no method", func(o *Options) { o.SearchMethod = "" }},
		{"no downloads", func(o *Options) { o.Downloads = 0 }},
		{"no connections", func(o *Options) { o.MaxConns = 0 }},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			o := valid
			d.modify(&o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tourist.env")
	require.NoError(t, os.WriteFile(file, []byte("TOURIST_TEST_KEY=fromfile\nTOURIST_TEST_PRESET=fromfile\n"), 0600))
	t.Setenv(EnvFile, file)
	t.Setenv("TOURIST_TEST_PRESET", "fromenv")
	t.Cleanup(func() { os.Unsetenv("TOURIST_TEST_KEY") })

	require.NoError(t, LoadEnv())
	assert.Equal(t, "fromfile", os.Getenv("TOURIST_TEST_KEY"))
	assert.Equal(t, "fromenv", os.Getenv("TOURIST_TEST_PRESET"))
}

func TestLoadMissingEnvFile(t *testing.T) {
	t.Setenv(EnvFile, filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, LoadEnv())
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("TOURIST_API_KEY", "envkey")
	t.Setenv("TOURIST_DOWNLOADS", "9")

	var o Options
	app := cli.NewApp()
	app.Flags = Flags
	app.Commands = []cli.Command{{
		Name: "serve",
		Action: func(c *cli.Context) error {
			o = FromContext(c)
			return nil
		},
	}}
	require.NoError(t, app.Run([]string{"tourist", "--port", "9090", "serve"}))

	assert.Equal(t, "envkey", o.APIKey)
	assert.Equal(t, int64(9), o.Downloads)
	assert.Equal(t, uint(9090), o.Port)
	assert.Equal(t, Defaults().BaseURL, o.BaseURL)
	assert.NoError(t, o.Validate())
}
