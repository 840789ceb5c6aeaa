package chat

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelforge/studio/backend/internal/analysis/fallback"
	"github.com/pixelforge/studio/backend/internal/metrics"
	"github.com/pixelforge/studio/backend/internal/model/persona"
	"github.com/pixelforge/studio/backend/internal/service/ai"
)

// Path names the branch that produced a bot reply.
type Path string

const (
	PathRemote   Path = "remote"
	PathFallback Path = "fallback"
)

// Remote is the generative collaborator. *ai.Service satisfies it.
type Remote interface {
	Enabled() bool
	Generate(ctx context.Context, systemPrompt, userText string) ai.Result
}

// PromptBuilder renders the fixed system instruction for a persona.
type PromptBuilder interface {
	BuildSystemPrompt(p *persona.Persona) string
}

// Resolution is one resolved reply and how it was obtained.
type Resolution struct {
	Text    string
	Path    Path
	Failure ai.FailureReason
	Rule    string
}

// Resolver chooses between the remote model and the keyword fallback. It holds no
// per-session state and is shared by every session.
type Resolver struct {
	remote  Remote
	rules   *fallback.Table
	prompts PromptBuilder
	tracer  trace.Tracer
}

// NewResolver builds a resolver. A nil remote routes everything to the fallback table,
// and a nil table uses the embedded default.
func NewResolver(remote Remote, rules *fallback.Table, prompts PromptBuilder) *Resolver {
	if rules == nil {
		rules = fallback.Default()
	}
	if prompts == nil {
		prompts = ai.NewPersonaPromptManager()
	}
	return &Resolver{
		remote:  remote,
		rules:   rules,
		prompts: prompts,
		tracer:  otel.Tracer("github.com/pixelforge/studio/backend/internal/service/chat"),
	}
}

// RemoteEnabled reports whether Resolve will attempt a network call.
func (r *Resolver) RemoteEnabled() bool {
	return r.remote != nil && r.remote.Enabled()
}

// Resolve always returns a non-empty reply. Remote failures are logged and replaced by the
// fallback table's answer; they are never returned.
func (r *Resolver) Resolve(ctx context.Context, p persona.Persona, userText string) Resolution {
	ctx, span := r.tracer.Start(ctx, "chat.resolve", trace.WithAttributes(
		attribute.String("persona.id", p.ID),
		attribute.Bool("remote.enabled", r.RemoteEnabled()),
	))
	defer span.End()

	result := ai.Failed(ai.FailureUnconfigured, nil)
	if r.RemoteEnabled() {
		result = r.remote.Generate(ctx, r.prompts.BuildSystemPrompt(&p), userText)
	}

	if result.OK() {
		span.SetAttributes(attribute.String("resolution.path", string(PathRemote)))
		metrics.RecordResolution(string(PathRemote), "")
		return Resolution{Text: result.Text, Path: PathRemote}
	}

	switch result.Failure {
	case ai.FailureUnconfigured:
	case ai.FailureCanceled:
		log.Debug().Str("persona", p.ID).Msg("caller went away before the remote reply, using keyword fallback")
	default:
		log.Warn().
			Err(result.Err).
			Str("persona", p.ID).
			Str("reason", string(result.Failure)).
			Msg("remote reply failed, using keyword fallback")
	}

	decision := r.rules.Classify(userText)
	span.SetAttributes(
		attribute.String("resolution.path", string(PathFallback)),
		attribute.String("resolution.failure", string(result.Failure)),
		attribute.String("resolution.rule", decision.Rule),
	)
	metrics.RecordResolution(string(PathFallback), string(result.Failure))

	return Resolution{
		Text:    decision.Response,
		Path:    PathFallback,
		Failure: result.Failure,
		Rule:    decision.Rule,
	}
}
