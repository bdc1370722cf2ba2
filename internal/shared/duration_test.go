package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshal(t *testing.T) {
	var cfg struct {
		Window Duration `yaml:"window"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("window: 168h"), &cfg))
	require.Equal(t, 7*24*time.Hour, cfg.Window.Std())

	require.NoError(t, yaml.Unmarshal([]byte("window: 90000000000"), &cfg))
	require.Equal(t, 90*time.Second, cfg.Window.Std())

	require.Error(t, yaml.Unmarshal([]byte("window: soon"), &cfg))
}

func TestDurationMarshal(t *testing.T) {
	out, err := yaml.Marshal(struct {
		Window Duration `yaml:"window"`
	}{Window: Duration(15 * time.Minute)})
	require.NoError(t, err)
	require.Contains(t, string(out), "15m0s")
}
