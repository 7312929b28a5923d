package ai

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/genai"

	"github.com/okian/devmatch/internal/config"
	"github.com/okian/devmatch/internal/domain/classify"
	"github.com/okian/devmatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   atomic.Int32
}

func (s *scriptedCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	i := int(s.calls.Add(1)) - 1
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "done", nil
}

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = cfg
	return f.resp, f.err
}

type fakeChat struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (f *fakeChat) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.params = body
	return f.resp, f.err
}

func fastRetries() []ResilientOption {
	return []ResilientOption{WithRetryDelay(time.Millisecond, time.Millisecond)}
}

func TestResilient(t *testing.T) {
	Convey("Given a resilient completer", t, func() {
		ctx := context.Background()

		Convey("When the backend fails transiently and then succeeds", func() {
			next := &scriptedCompleter{
				errs:    []error{genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}},
				replies: []string{"", "kafka, streaming"},
			}
			r := NewResilient(next, append(fastRetries(), WithAttempts(3))...)
			out, err := r.Complete(ctx, "sys", "prompt")

			Convey("Then the call is retried", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "kafka, streaming")
				So(next.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the backend rejects the request permanently", func() {
			next := &scriptedCompleter{errs: []error{
				genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"},
				nil,
			}}
			r := NewResilient(next, append(fastRetries(), WithAttempts(3))...)
			_, err := r.Complete(ctx, "sys", "prompt")

			Convey("Then it is not retried", func() {
				So(err, ShouldNotBeNil)
				So(next.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When every attempt fails", func() {
			boom := errors.New("connection reset")
			next := &scriptedCompleter{errs: []error{boom, boom, boom, boom}}
			r := NewResilient(next, append(fastRetries(), WithAttempts(3), WithLogger(logger.NewNop()))...)
			_, err := r.Complete(ctx, "sys", "prompt")

			Convey("Then attempts are bounded and the error surfaces", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				So(next.calls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When an attempt exceeds its timeout", func() {
			slow := completerFunc(func(ctx context.Context, _, _ string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			})
			r := NewResilient(slow, append(fastRetries(), WithAttempts(2), WithAttemptTimeout(10*time.Millisecond))...)
			start := time.Now()
			_, err := r.Complete(ctx, "sys", "prompt")

			Convey("Then the call fails without blocking", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(time.Since(start), ShouldBeLessThan, time.Second)
			})
		})

		Convey("When calls are rate limited", func() {
			next := &scriptedCompleter{}
			r := NewResilient(next, WithRateLimit(20, 1))
			start := time.Now()
			for i := 0; i < 3; i++ {
				_, err := r.Complete(ctx, "sys", "prompt")
				So(err, ShouldBeNil)
			}

			Convey("Then later calls wait for tokens", func() {
				So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 80*time.Millisecond)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			next := &scriptedCompleter{}
			r := NewResilient(next, append(fastRetries(), WithRateLimit(1, 1))...)
			_, err := r.Complete(cctx, "sys", "prompt")

			Convey("Then it fails fast", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

type completerFunc func(ctx context.Context, system, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

func TestGemini(t *testing.T) {
	Convey("Given a Gemini completer over a fake generator", t, func() {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: " payments "}, {Text: "fraud-detection"}}}}},
		}}
		g := newGemini(gen, "")

		Convey("When completing a prompt", func() {
			out, err := g.Complete(context.Background(), "be terse", "classify this")

			Convey("Then text parts are joined and the system instruction is set", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "payments\nfraud-detection")
				So(gen.model, ShouldEqual, defaultGeminiModel)
				So(gen.config.SystemInstruction, ShouldNotBeNil)
				So(*gen.config.Temperature, ShouldEqual, float32(0))
			})
		})

		Convey("When the response has no text", func() {
			gen.resp = &genai.GenerateContentResponse{}
			_, err := g.Complete(context.Background(), "", "classify this")

			Convey("Then ErrEmptyResponse is returned", func() {
				So(errors.Is(err, ErrEmptyResponse), ShouldBeTrue)
			})
		})

		Convey("When the API fails", func() {
			gen.err = genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
			_, err := g.Complete(context.Background(), "", "classify this")

			Convey("Then the status is visible to the retry policy", func() {
				So(err, ShouldNotBeNil)
				So(isRetryable(err), ShouldBeTrue)
			})
		})

		Convey("When the prompt is blank", func() {
			_, err := g.Complete(context.Background(), "", "   ")
			So(errors.Is(err, ErrEmptyPrompt), ShouldBeTrue)
			So(isRetryable(err), ShouldBeFalse)
		})
	})
}

func TestOpenAI(t *testing.T) {
	Convey("Given an OpenAI completer over a fake chat service", t, func() {
		chat := &fakeChat{resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: " search, ranking "}}},
		}}
		o := newOpenAI(chat, "custom-model")

		Convey("When completing a prompt", func() {
			out, err := o.Complete(context.Background(), "be terse", "classify this")

			Convey("Then the first choice is returned", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "search, ranking")
				So(o.Model(), ShouldEqual, "custom-model")
				So(string(chat.params.Model), ShouldEqual, "custom-model")
				So(len(chat.params.Messages), ShouldEqual, 2)
			})
		})

		Convey("When there are no choices", func() {
			chat.resp = &openai.ChatCompletion{}
			_, err := o.Complete(context.Background(), "", "classify this")
			So(errors.Is(err, ErrEmptyResponse), ShouldBeTrue)
		})

		Convey("When no model is configured", func() {
			So(newOpenAI(chat, " ").Model(), ShouldEqual, string(defaultOpenAIModel))
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given AI configuration", t, func() {
		ctx := context.Background()
		cfg := config.New().AI

		Convey("When the provider is none", func() {
			c, err := New(ctx, cfg, logger.NewNop())
			So(err, ShouldBeNil)
			So(c, ShouldBeNil)
		})

		Convey("When a provider has no API key", func() {
			cfg.Provider = config.ProviderOpenAI
			_, err := New(ctx, cfg, logger.NewNop())
			So(errors.Is(err, ErrMissingAPIKey), ShouldBeTrue)

			cfg.Provider = config.ProviderGemini
			_, err = New(ctx, cfg, logger.NewNop())
			So(errors.Is(err, ErrMissingAPIKey), ShouldBeTrue)
		})

		Convey("When the provider is unknown", func() {
			cfg.Provider = "mystery"
			_, err := New(ctx, cfg, logger.NewNop())
			So(errors.Is(err, ErrUnknownProvider), ShouldBeTrue)
		})

		Convey("When OpenAI is configured", func() {
			cfg.Provider = config.ProviderOpenAI
			cfg.APIKey = "sk-test"
			cfg.BaseURL = "http://127.0.0.1:1/v1"
			c, err := New(ctx, cfg, logger.NewNop())

			Convey("Then a resilient completer is returned", func() {
				So(err, ShouldBeNil)
				_, ok := c.(*Resilient)
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestBudget(t *testing.T) {
	Convey("Given retry settings", t, func() {
		Convey("When attempts are bounded by a timeout", func() {
			r := NewResilient(nil, WithAttempts(3), WithAttemptTimeout(time.Second), WithRetryDelay(250*time.Millisecond, 100*time.Millisecond))

			Convey("Then the budget covers every attempt and backoff", func() {
				So(r.Budget(), ShouldEqual, 3*time.Second+350*time.Millisecond+600*time.Millisecond)
			})
		})

		Convey("When attempts have no timeout", func() {
			So(NewResilient(nil, WithAttempts(3)).Budget(), ShouldEqual, time.Duration(0))
		})

		Convey("When derived from configuration", func() {
			cfg := config.New().AI
			cfg.TimeoutMS = 1000
			cfg.MaxRetries = 2

			Convey("Then it exceeds a single attempt's timeout", func() {
				So(Budget(cfg), ShouldBeGreaterThan, 3*cfg.Timeout())
			})
		})
	})

	Convey("Given a classifier bounded by the completer's budget", t, func() {
		var calls atomic.Int32
		flaky := completerFunc(func(ctx context.Context, _, _ string) (string, error) {
			if calls.Add(1) == 1 {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "databases", nil
		})
		r := NewResilient(flaky, append(fastRetries(), WithAttempts(2), WithAttemptTimeout(100*time.Millisecond))...)
		c := classify.New(r, classify.WithTimeout(r.Budget()))

		Convey("When the first attempt times out", func() {
			res := c.Classify(context.Background(), nil, classify.Input{Message: "add a storage engine"})

			Convey("Then the retry still runs inside the deadline", func() {
				So(calls.Load(), ShouldEqual, 2)
				So(res.Source, ShouldEqual, classify.SourceAI)
				So(res.Tags, ShouldResemble, []string{"databases"})
			})
		})
	})
}
