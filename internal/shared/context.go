package shared

import "context"

type actorContextKey struct{}

// SystemActor is used when no operator is attached to the request.
const SystemActor = "system"

// ContextWithActor stores the acting operator in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the operator, defaulting to SystemActor.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	if actor == "" {
		return SystemActor
	}
	return actor
}
