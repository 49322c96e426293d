package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"easyapply/internal/answer"
	"easyapply/internal/form"
)

// StepExecutor fills every field of one form step from resolver output.
// Individual write failures degrade the field to unresolved instead of
// failing the step; only a lost session propagates as an error.
type StepExecutor struct {
	resolver *answer.Resolver
	session  FormSession
	log      *zap.Logger
}

// NewStepExecutor returns an executor writing through session.
func NewStepExecutor(resolver *answer.Resolver, session FormSession, log *zap.Logger) *StepExecutor {
	return &StepExecutor{resolver: resolver, session: session, log: log}
}

// Execute classifies and resolves every descriptor of the current step
// and writes the resolved values. The returned outcome carries
// advance=true iff no required field was left unresolved. The error is
// non-nil only when the session itself is unusable.
func (e *StepExecutor) Execute(ctx context.Context, descriptors []form.Descriptor) (StepOutcome, error) {
	var out StepOutcome
	requiredUnresolved := false

	for _, d := range descriptors {
		f := form.Classify(d)
		out.Attempted++

		// Pre-filled fields (platform autofill) count as resolved.
		if f.Value != "" && f.Kind != form.FileUpload {
			out.Resolved++
			continue
		}

		res, ok := e.resolver.Resolve(f)
		if !ok {
			out.Unresolved = append(out.Unresolved, f.Label)
			if f.Required {
				requiredUnresolved = true
				e.log.Warn("required field unresolved",
					zap.String("label", f.Label),
					zap.String("kind", f.Kind.String()))
			} else {
				e.log.Debug("optional field left blank", zap.String("label", f.Label))
			}
			continue
		}

		var err error
		if f.Kind == form.FileUpload {
			err = e.session.Attach(ctx, f.Ref, res.Value)
		} else {
			err = e.session.Write(ctx, f.Ref, res.Value)
		}
		if err != nil {
			if errors.Is(err, ErrSessionLost) {
				return out, err
			}
			// No per-field retry: a failed write degrades to
			// unresolved and blocks only if the field was required.
			out.Unresolved = append(out.Unresolved, f.Label)
			if f.Required {
				requiredUnresolved = true
			}
			e.log.Warn("field write failed",
				zap.String("label", f.Label),
				zap.String("kind", f.Kind.String()),
				zap.Error(err))
			continue
		}

		out.Resolved++
		e.log.Debug("field filled",
			zap.String("label", f.Label),
			zap.String("kind", f.Kind.String()),
			zap.String("rule", res.Rule.String()))
	}

	out.Advance = !requiredUnresolved
	return out, nil
}
