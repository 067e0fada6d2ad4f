package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRegistersSchedules(t *testing.T) {
	f := newFixture()
	f.cfg.IngestionSchedule = "0 * * * *"
	f.cfg.MaintenanceSchedule = "0 */6 * * *"

	s, err := NewScheduler(f.cfg, f.runner)
	require.NoError(t, err)

	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.Stop(ctx)
}

func TestNewSchedulerRejectsInvalidSpec(t *testing.T) {
	f := newFixture()
	f.cfg.IngestionSchedule = "not a cron spec"

	_, err := NewScheduler(f.cfg, f.runner)
	assert.Error(t, err)
}
