package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/devmatch/internal/adapters/mq/queue"
	worker "github.com/okian/devmatch/internal/adapters/mq/worker"
	model "github.com/okian/devmatch/internal/domain/model"
	logging "github.com/okian/devmatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan model.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan model.Job, 16)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(job model.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	mq.jobs <- job
}

type recordingHandler struct {
	mu        sync.Mutex
	processed map[string]int
	failures  map[string]error
	delay     time.Duration
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{processed: map[string]int{}, failures: map[string]error{}}
}

func (h *recordingHandler) Process(_ context.Context, job model.Job) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err, ok := h.failures[job.ID()]; ok {
		return err
	}
	h.processed[job.ID()]++
	return nil
}

func (h *recordingHandler) fail(id string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[id] = err
}

func (h *recordingHandler) count(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.processed[id]
}

func (h *recordingHandler) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.processed)
}

func commitJob(id string) model.Job {
	return model.Job{
		Kind:         model.JobContribution,
		Contribution: &model.Contribution{ID: id, Developer: "dev-" + id, Repo: "org/repo"},
	}
}

func reviewJob(id string) model.Job {
	return model.Job{
		Kind:   model.JobReview,
		Review: &model.Review{ID: id, Reviewer: "rev", Repo: "org/repo"},
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		h := newRecordingHandler()

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, h, worker.WithName("test-worker"))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And jobs of both kinds arrive", func() {
				q.add(commitJob("c1"))
				q.add(reviewJob("r1"))

				convey.Convey("Then each is handled once", func() {
					convey.So(waitFor(func() bool { return h.total() == 2 }), convey.ShouldBeTrue)
					convey.So(h.count("c1"), convey.ShouldEqual, 1)
					convey.So(h.count("r1"), convey.ShouldEqual, 1)
				})
			})

			convey.Convey("And the handler fails", func() {
				h.fail("bad", errors.New("boom"))
				q.add(commitJob("bad"))
				q.add(commitJob("good"))

				convey.Convey("Then the worker keeps going", func() {
					convey.So(waitFor(func() bool { return h.count("good") == 1 }), convey.ShouldBeTrue)
					convey.So(h.count("bad"), convey.ShouldEqual, 0)
				})
			})

			convey.Convey("And it is shut down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()

				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, h)
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewInMemoryWorker(q, h)
			go w.Run(context.Background())
			q.add(commitJob("last"))
			_ = q.Close()

			convey.Convey("Then the worker drains and stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
				convey.So(h.count("last"), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(256))
		h := newRecordingHandler()

		convey.Convey("When creating a pool with default count", func() {
			pool := worker.NewPool(0, q, h)

			convey.Convey("Then it sizes itself from the CPU count", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When many producers enqueue concurrently", func() {
			pool := worker.NewPool(4, q, h)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			const producers, perProducer = 5, 20
			var wg sync.WaitGroup
			for i := 0; i < producers; i++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for j := 0; j < perProducer; j++ {
						for !q.Enqueue(ctx, commitJob(fmt.Sprintf("c-%d-%d", p, j))) {
							time.Sleep(time.Millisecond)
						}
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then shutdown drains every job exactly once", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer shutdownCancel()

				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(h.total(), convey.ShouldEqual, producers*perProducer)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When workers cannot drain before the deadline", func() {
			h.delay = 200 * time.Millisecond
			pool := worker.NewPool(1, q, h)
			pool.Start(context.Background())
			for i := 0; i < 5; i++ {
				q.Enqueue(context.Background(), commitJob(fmt.Sprintf("slow-%d", i)))
			}

			convey.Convey("Then Shutdown reports the timeout", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				defer shutdownCancel()

				err := pool.Shutdown(shutdownCtx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestHandlerFunc(t *testing.T) {
	convey.Convey("Given a HandlerFunc", t, func() {
		var got string
		h := worker.HandlerFunc(func(_ context.Context, job model.Job) error {
			got = job.ID()
			return nil
		})

		convey.So(h.Process(context.Background(), reviewJob("r9")), convey.ShouldBeNil)
		convey.So(got, convey.ShouldEqual, "r9")
	})
}
