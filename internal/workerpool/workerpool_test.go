package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesAllTasks(t *testing.T) {
	p := New(4)

	var count atomic.Int32
	tasks := make([]func(context.Context) error, 0, 10)
	for i := 0; i < 10; i++ {
		tasks = append(tasks, func(context.Context) error {
			count.Add(1)
			return nil
		})
	}

	require.NoError(t, p.Run(context.Background(), tasks...))
	assert.Equal(t, int32(10), count.Load())
}

func TestRunPropagatesFirstError(t *testing.T) {
	p := New(0)
	boom := errors.New("boom")

	err := p.Run(context.Background(),
		func(context.Context) error { return nil },
		func(context.Context) error { return boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestRunWithNoTasksSucceeds(t *testing.T) {
	p := New(2)
	assert.NoError(t, p.Run(context.Background()))
}
