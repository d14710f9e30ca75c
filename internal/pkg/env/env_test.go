package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvPrefersLoadedMap(t *testing.T) {
	t.Setenv("OPSLEDGER_TEST_KEY", "from-os")
	Env = map[string]string{"OPSLEDGER_TEST_KEY": "from-file"}
	t.Cleanup(func() { Env = nil })

	assert.Equal(t, "from-file", GetEnv("OPSLEDGER_TEST_KEY", "def"))
	delete(Env, "OPSLEDGER_TEST_KEY")
	assert.Equal(t, "from-os", GetEnv("OPSLEDGER_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("OPSLEDGER_MISSING_KEY", "def"))
}

func TestGetEnvInt(t *testing.T) {
	Env = map[string]string{"N": "12", "BAD": "twelve"}
	t.Cleanup(func() { Env = nil })

	assert.Equal(t, 12, GetEnvInt("N", 3))
	assert.Equal(t, 3, GetEnvInt("BAD", 3))
	assert.Equal(t, 3, GetEnvInt("UNSET_INT_KEY", 3))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		raw  string
		def  bool
		want bool
	}{
		{raw: "true", want: true},
		{raw: "YES", want: true},
		{raw: "1", want: true},
		{raw: "on", want: true},
		{raw: "false", def: true, want: false},
		{raw: "nope", def: true, want: false},
		{raw: "", def: true, want: true},
	}

	for _, tt := range tests {
		Env = map[string]string{"FLAG": tt.raw}
		assert.Equal(t, tt.want, GetEnvBool("FLAG", tt.def), "raw=%q", tt.raw)
	}
	Env = nil
}
