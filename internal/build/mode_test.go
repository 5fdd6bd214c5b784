package build

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/paths"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{input: "dev", want: ModeDev},
		{input: "PROD", want: ModeProd},
		{input: " production ", want: ModeProd},
		{input: "development", want: ModeDev},
		{input: "", wantErr: true},
		{input: "staging", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestModeValidate(t *testing.T) {
	assert.NoError(t, ModeDev.Validate())
	assert.NoError(t, ModeProd.Validate())

	err := ModeUnset.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.Error(t, Mode(42).Validate())
}

func TestModeRoot(t *testing.T) {
	assert.Equal(t, paths.RootDev, ModeDev.Root())
	assert.Equal(t, paths.RootProd, ModeProd.Root())
	assert.Equal(t, "unset", ModeUnset.String())
}

func TestModeFlag(t *testing.T) {
	var mode Mode
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Var(&mode, "mode", "build mode")

	require.NoError(t, flags.Parse([]string{"--mode", "prod"}))
	assert.Equal(t, ModeProd, mode)
	assert.Equal(t, "mode", flags.Lookup("mode").Value.Type())

	assert.Error(t, flags.Parse([]string{"--mode", "nope"}))
}
