package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/pixelforge/studio/backend/internal/config"
	"github.com/pixelforge/studio/backend/internal/metrics"
)

// errCallerGone marks a call abandoned by its caller rather than failed by the provider.
var errCallerGone = errors.New("caller went away")

// Options tunes a Service independently of how its chat model was built.
type Options struct {
	Provider        string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Service makes at most one bounded remote attempt per call and reports the outcome as a Result.
// A disabled Service never touches the network.
type Service struct {
	chain    compose.Runnable[map[string]any, *schema.Message]
	provider string
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker
}

// NewService wires the configured provider. A missing or placeholder credential yields a
// disabled Service rather than an error.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	opts := Options{
		Provider:        cfg.Provider,
		Timeout:         cfg.Timeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	}

	if !cfg.Enabled() {
		log.Warn().Str("provider", cfg.Provider).Msg("AI credentials missing or placeholder, replies will use the keyword fallback")
		return &Service{provider: cfg.Provider, timeout: cfg.Timeout}, nil
	}

	var chatModel model.BaseChatModel
	switch cfg.Provider {
	case config.ProviderArk:
		m, err := cfg.NewArkChatModel(ctx)
		if err != nil {
			return nil, err
		}
		chatModel = m
	default:
		chatModel = NewGeminiClient(GeminiConfigFrom(cfg))
	}

	return NewServiceWithModel(ctx, chatModel, opts)
}

// NewServiceWithModel builds an enabled Service on top of any eino chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, opts Options) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Provider == "" {
		opts.Provider = config.ProviderGemini
	}

	template := prompt.FromMessages(schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile reply chain: %w", err)
	}

	return &Service{
		chain:    runnable,
		provider: opts.Provider,
		timeout:  opts.Timeout,
		breaker:  newBreaker(opts),
	}, nil
}

func newBreaker(opts Options) *gobreaker.CircuitBreaker {
	threshold := opts.BreakerFailures
	metrics.SetBreakerState(opts.Provider, gobreaker.StateClosed.String())

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Provider,
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, to.String())
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("remote breaker state changed")
		},
	})
}

// countsAsHealthy keeps caller cancellations and blocked prompts out of the failure streak.
// Neither says anything about the provider.
func countsAsHealthy(err error) bool {
	return err == nil || errors.Is(err, errCallerGone) || errors.Is(err, ErrPromptBlocked)
}

// Enabled reports whether Generate may reach the network.
func (s *Service) Enabled() bool {
	return s != nil && s.chain != nil
}

// Provider names the backing provider.
func (s *Service) Provider() string {
	if s == nil {
		return ""
	}
	return s.provider
}

// Generate asks the model for a reply to userText under systemPrompt. It never panics and
// never returns an error: every failure is folded into the Result.
func (s *Service) Generate(ctx context.Context, systemPrompt, userText string) Result {
	if !s.Enabled() {
		return Failed(FailureUnconfigured, nil)
	}
	if err := ctx.Err(); err != nil {
		return Failed(FailureCanceled, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	out, err := s.breaker.Execute(func() (interface{}, error) {
		msg, err := s.chain.Invoke(callCtx, map[string]any{
			"system": systemPrompt,
			"query":  userText,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, err)
			}
			return nil, err
		}
		if msg == nil {
			return nil, ErrNoCandidate
		}
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			return nil, ErrNoCandidate
		}
		return text, nil
	})

	if !isBreakerRejection(err) {
		metrics.ObserveRemoteLatency(s.provider, time.Since(started).Seconds())
	}

	if err != nil {
		return Failed(classify(callCtx, err), err)
	}
	return Succeeded(out.(string))
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// classify maps an error onto a FailureReason. The call context is consulted first because
// the chain may not preserve the wrapped deadline error.
func classify(callCtx context.Context, err error) FailureReason {
	if isBreakerRejection(err) {
		return FailureCircuitOpen
	}
	if errors.Is(err, errCallerGone) {
		return FailureCanceled
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return FailureStatus
	case errors.Is(err, ErrMalformedResponse):
		return FailureMalformed
	case errors.Is(err, ErrNoCandidate):
		return FailureNoCandidate
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureTransport
}
