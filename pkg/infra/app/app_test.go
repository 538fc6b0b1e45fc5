package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/seeksense/pkg/app/cliflag"
)

type demoOptions struct {
	Name      string `mapstructure:"name"`
	Size      int    `mapstructure:"size"`
	completed bool
}

func (o *demoOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("demo")
	fs.StringVar(&o.Name, "name", o.Name, "Name.")
	fs.IntVar(&o.Size, "size", o.Size, "Size.")
	return fss
}

func (o *demoOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *demoOptions) Validate() error {
	if o.Size < 0 {
		return errors.New("size cannot be negative")
	}
	return nil
}

func TestRunAppliesFlagsAndConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "demo.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("name: from-file\nsize: 3\n"), 0o600))

	opts := &demoOptions{Name: "default", Size: 1}
	var ran bool
	a := NewApp(
		WithName("demo"),
		WithOptions(opts),
		WithNoVersion(),
		WithRunFunc(func(ctx context.Context) error {
			ran = true
			return nil
		}),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"--config", cfg, "--size", "7"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, "from-file", opts.Name)
	assert.Equal(t, 7, opts.Size, "命令行参数优先于配置文件")
}

func TestValidationFailureStopsRun(t *testing.T) {
	opts := &demoOptions{}
	a := NewApp(
		WithName("demo"),
		WithOptions(opts),
		WithNoVersion(),
		WithNoConfig(),
		WithSilence(),
		WithRunFunc(func(ctx context.Context) error {
			t.Fatal("run should not be called")
			return nil
		}),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"--size=-1"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestSubCommandSharesOptions(t *testing.T) {
	opts := &demoOptions{}
	var got string
	sub := &cobra.Command{
		Use: "index",
		RunE: func(cmd *cobra.Command, args []string) error {
			got = opts.Name
			return nil
		},
	}
	a := NewApp(WithName("demo"), WithOptions(opts), WithNoVersion(), WithNoConfig(), WithCommands(sub))

	cmd := a.Command()
	cmd.SetArgs([]string{"index", "--name", "x"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "x", got)
	assert.True(t, opts.completed)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SEEKSENSE_TEST_HOST", "db.internal")

	a := NewApp(WithName("demo"), WithNoVersion())
	a.viper.Set("addr", "${SEEKSENSE_TEST_HOST}:6379")
	a.viper.Set("other", "$UNSET_SEEKSENSE_VAR")
	expandEnvVars(a.viper)

	assert.Equal(t, "db.internal:6379", a.viper.GetString("addr"))
	assert.Equal(t, "$UNSET_SEEKSENSE_VAR", a.viper.GetString("other"))
}
