package retention

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"emberpost/pkg/config"
)

type countingPurger struct{ calls int }

func (p *countingPurger) PurgeExpired() int {
	p.calls++
	return 0
}

func TestStartDisabled(t *testing.T) {
	p := &countingPurger{}
	cancel, err := Start(context.Background(), config.RetentionConfig{Enabled: false}, p)
	require.NoError(t, err)
	require.NotNil(t, cancel)
	cancel()
	require.Equal(t, 0, p.calls)
}

func TestStartInvalidCron(t *testing.T) {
	_, err := Start(context.Background(), config.RetentionConfig{Enabled: true, Cron: "not a cron"}, &countingPurger{})
	require.Error(t, err)
}

func TestStartValidCron(t *testing.T) {
	cancel, err := Start(context.Background(), config.RetentionConfig{Enabled: true, Cron: "0 * * * *"}, &countingPurger{})
	require.NoError(t, err)
	cancel()
}

func TestStartDefaultCron(t *testing.T) {
	// empty expression falls back to the hourly default instead of failing
	cancel, err := Start(context.Background(), config.RetentionConfig{Enabled: true}, &countingPurger{})
	require.NoError(t, err)
	cancel()
}
