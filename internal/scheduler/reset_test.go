package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/trafficroom/internal/service"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

type resetterStub struct {
	ids   []int64
	err   error
	calls int
}

func (r *resetterStub) ResetAll(context.Context) ([]int64, error) {
	r.calls++
	return r.ids, r.err
}

type resetNotifier struct {
	service.Notifier
	ids     []int64
	message string
	calls   int
	err     error
}

func (n *resetNotifier) RankingReset(_ context.Context, ids []int64, message string) error {
	n.calls++
	n.ids = ids
	n.message = message
	return n.err
}

func TestResetJob_Run(t *testing.T) {
	ranking := &resetterStub{ids: []int64{1, 2, 3}}
	notifier := &resetNotifier{}

	j, err := NewResetJob("0 0 * * *", ranking, notifier, "reset!", logger.InitializeTestZapLogger())
	require.NoError(t, err)

	require.NoError(t, j.Run(context.Background()))
	assert.Equal(t, 1, ranking.calls)
	assert.Equal(t, []int64{1, 2, 3}, notifier.ids)
	assert.Equal(t, "reset!", notifier.message)
}

func TestResetJob_ResetFailureSkipsNotify(t *testing.T) {
	ranking := &resetterStub{err: errors.New("store down")}
	notifier := &resetNotifier{}

	j, err := NewResetJob("0 0 * * *", ranking, notifier, "reset!", logger.InitializeTestZapLogger())
	require.NoError(t, err)

	assert.Error(t, j.Run(context.Background()))
	assert.Zero(t, notifier.calls)
}

func TestResetJob_NotifyFailureIsNotAnError(t *testing.T) {
	ranking := &resetterStub{ids: []int64{1}}
	notifier := &resetNotifier{err: errors.New("broker down")}

	j, err := NewResetJob("0 0 * * *", ranking, notifier, "reset!", logger.InitializeTestZapLogger())
	require.NoError(t, err)

	assert.NoError(t, j.Run(context.Background()))
}

func TestResetJob_InvalidSchedule(t *testing.T) {
	_, err := NewResetJob("every midnight", &resetterStub{}, &resetNotifier{}, "", logger.InitializeTestZapLogger())
	assert.Error(t, err)
}

func TestResetJob_StartStop(t *testing.T) {
	j, err := NewResetJob("@every 1h", &resetterStub{}, &resetNotifier{}, "", logger.InitializeTestZapLogger())
	require.NoError(t, err)

	j.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
