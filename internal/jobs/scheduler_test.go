package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type fakeTrimmer struct{ calls int }

func (f *fakeTrimmer) Trim(context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

func TestProbeTracksUpstreamHealth(t *testing.T) {
	pinger := &fakePinger{}
	s := NewScheduler(Schedules{}, pinger, nil, zerolog.Nop())
	assert.True(t, s.UpstreamHealthy())

	pinger.err = errors.New("connection refused")
	s.probeUpstream()
	assert.False(t, s.UpstreamHealthy())

	pinger.err = nil
	s.probeUpstream()
	assert.True(t, s.UpstreamHealthy())
}

func TestTrimAudit(t *testing.T) {
	trimmer := &fakeTrimmer{}
	s := NewScheduler(Schedules{}, nil, trimmer, zerolog.Nop())
	s.trimAudit()
	assert.Equal(t, 1, trimmer.calls)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(Schedules{UpstreamHealth: "not a cron spec"}, &fakePinger{}, nil, zerolog.Nop())
	assert.Error(t, s.Start())

	ok := NewScheduler(Schedules{UpstreamHealth: "*/30 * * * * *", AuditTrim: "0 0 3 * * *"}, &fakePinger{}, &fakeTrimmer{}, zerolog.Nop())
	require.NoError(t, ok.Start())
	ok.Stop()
}
