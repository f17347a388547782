package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	var (
		completed = domain.EventAttemptCompleted{AttemptID: "a1", QuizID: "q1"}
		granted   = domain.EventAdmissionGranted{QuizID: "q1", Email: "s@example.com"}
	)

	type (
		inputs struct {
			opts        []event.Option
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber receives only the events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{completed, granted},
					subscribers: []subscriber{
						{name: "notifier", subscribeTo: []string{domain.EventNameAttemptCompleted}},
					},
				}
			},
			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{completed}, out.received["notifier"])
			},
		},

		"an event is dispatched to every subscriber": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{completed},
					subscribers: []subscriber{
						{name: "notifier", subscribeTo: []string{domain.EventNameAttemptCompleted}},
						{name: "audit", subscribeTo: []string{domain.EventNameAttemptCompleted, domain.EventNameAdmissionGranted}},
					},
				}
			},
			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{completed}, out.received["notifier"])
				assert.ElementsMatch(t, []event.Event{completed}, out.received["audit"])
			},
		},

		"a pool of one still delivers every event": {
			arrange: func() inputs {
				return inputs{
					opts:      []event.Option{event.WithPoolSize(1)},
					published: []event.Event{completed, granted, completed},
					subscribers: []subscriber{
						{name: "audit", subscribeTo: []string{domain.EventNameAttemptCompleted, domain.EventNameAdmissionGranted}},
					},
				}
			},
			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{completed, completed, granted}, out.received["audit"])
			},
		},

		"a failing subscriber does not stop others": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{granted},
					subscribers: []subscriber{
						{name: "broken", subscribeTo: []string{domain.EventNameAdmissionGranted}, fail: true},
						{name: "audit", subscribeTo: []string{domain.EventNameAdmissionGranted}},
					},
				}
			},
			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{granted}, out.received["broken"])
				assert.ElementsMatch(t, []event.Event{granted}, out.received["audit"])
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus(in.opts...)
			for _, s := range in.subscribers {
				s := s
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						if s.fail {
							return errors.New("subscriber failed")
						}
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_HandlerOutlivesPublisherContext(t *testing.T) {
	b := event.NewBus(event.WithTimeout(time.Second))

	ctxErr := make(chan error, 1)
	b.Subscribe(domain.EventNameAttemptCompleted, func(ctx context.Context, e event.Event) error {
		time.Sleep(10 * time.Millisecond)
		ctxErr <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	b.Publish(ctx, domain.EventAttemptCompleted{AttemptID: "a1"})
	cancel()
	b.Stop()

	require.NoError(t, <-ctxErr)
}

func TestBus_RecoversHandlerPanic(t *testing.T) {
	b := event.NewBus()
	b.Subscribe(domain.EventNameAttemptCompleted, func(ctx context.Context, e event.Event) error {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		b.Publish(context.Background(), domain.EventAttemptCompleted{AttemptID: "a1"})
		b.Stop()
	})
}

type subscriber struct {
	name        string
	subscribeTo []string
	fail        bool
}
