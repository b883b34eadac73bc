package condition

import (
	"context"
	"fmt"
	"math/rand"
)

// Built-in leaf kinds. Deterministic kinds are pure functions of the
// context snapshot; time_after_hour and chance are not, and are therefore
// never cacheable.
const (
	KindHasItem           = "has_item"
	KindStatAtLeast       = "stat_at_least"
	KindFactionIs         = "faction_is"
	KindVarEquals         = "var_equals"
	KindObjectiveComplete = "objective_complete"
	KindTimeAfterHour     = "time_after_hour"
	KindChance            = "chance"
)

// RegisterBuiltins populates a registry with the built-in leaf kinds.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]LeafSpec{
		KindHasItem: {
			Build:         buildHasItem,
			DefaultCost:   10,
			Deterministic: true,
		},
		KindStatAtLeast: {
			Build:         buildStatAtLeast,
			DefaultCost:   10,
			Deterministic: true,
		},
		KindFactionIs: {
			Build:         buildFactionIs,
			DefaultCost:   5,
			Deterministic: true,
		},
		KindVarEquals: {
			Build:         buildVarEquals,
			DefaultCost:   5,
			Deterministic: true,
		},
		KindObjectiveComplete: {
			Build:         buildObjectiveComplete,
			DefaultCost:   20,
			Deterministic: true,
		},
		KindTimeAfterHour: {
			Build:       buildTimeAfterHour,
			DefaultCost: 5,
		},
		KindChance: {
			Build:       buildChance,
			DefaultCost: 5,
		},
	}

	for kind, spec := range builtins {
		if err := r.Register(kind, spec); err != nil {
			return err
		}
	}
	return nil
}

func buildHasItem(params map[string]any) (CheckFunc, error) {
	item, err := stringParam(params, "item")
	if err != nil {
		return nil, err
	}
	count := intParamDefault(params, "count", 1)
	if count < 1 {
		return nil, fmt.Errorf("param %q must be positive", "count")
	}

	return func(_ context.Context, ec *Context) (bool, error) {
		actor := ec.Actor()
		if actor == nil {
			return false, nil
		}
		return actor.CountItem(item) >= count, nil
	}, nil
}

func buildStatAtLeast(params map[string]any) (CheckFunc, error) {
	stat, err := stringParam(params, "stat")
	if err != nil {
		return nil, err
	}
	value, err := intParam(params, "value")
	if err != nil {
		return nil, err
	}

	return func(_ context.Context, ec *Context) (bool, error) {
		actor := ec.Actor()
		if actor == nil {
			return false, nil
		}
		got, ok := actor.Stat(stat)
		if !ok {
			// Absent stat fails closed rather than erroring.
			return false, nil
		}
		return got >= value, nil
	}, nil
}

func buildFactionIs(params map[string]any) (CheckFunc, error) {
	faction, err := stringParam(params, "faction")
	if err != nil {
		return nil, err
	}

	return func(_ context.Context, ec *Context) (bool, error) {
		actor := ec.Actor()
		if actor == nil {
			return false, nil
		}
		return actor.Faction() == faction, nil
	}, nil
}

func buildVarEquals(params map[string]any) (CheckFunc, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}
	want, ok := params["value"]
	if !ok {
		return nil, fmt.Errorf("missing param %q", "value")
	}

	return func(_ context.Context, ec *Context) (bool, error) {
		got, ok := ec.Value(key)
		if !ok {
			return false, nil
		}
		return equalValues(got, want), nil
	}, nil
}

func buildObjectiveComplete(params map[string]any) (CheckFunc, error) {
	objectiveID, err := stringParam(params, "objective")
	if err != nil {
		return nil, err
	}

	return func(_ context.Context, ec *Context) (bool, error) {
		pv := ec.Progress()
		actor := ec.Actor()
		if pv == nil || actor == nil {
			return false, nil
		}
		return pv.ObjectiveComplete(objectiveID, actor.ID()), nil
	}, nil
}

func buildTimeAfterHour(params map[string]any) (CheckFunc, error) {
	hour, err := intParam(params, "hour")
	if err != nil {
		return nil, err
	}
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("param %q must be in [0,23]", "hour")
	}

	return func(_ context.Context, ec *Context) (bool, error) {
		return ec.Now().Hour() >= hour, nil
	}, nil
}

func buildChance(params map[string]any) (CheckFunc, error) {
	p, err := floatParam(params, "p")
	if err != nil {
		return nil, err
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("param %q must be in [0,1]", "p")
	}

	return func(_ context.Context, _ *Context) (bool, error) {
		return rand.Float64() < p, nil
	}, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing param %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("param %q must be a non-empty string", key)
	}
	return s, nil
}

func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing param %q", key)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fmt.Errorf("param %q must be an integer", key)
	}
	return n, nil
}

func intParamDefault(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	if n, ok := toInt(v); ok {
		return n
	}
	return def
}

func floatParam(params map[string]any, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing param %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("param %q must be a number", key)
	}
}

// toInt accepts the numeric types JSON and YAML decoding produce.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// equalValues compares payload/context values loosely enough to survive a
// JSON round trip (ints become float64).
func equalValues(a, b any) bool {
	if a == b {
		return true
	}
	ai, aok := toInt(a)
	bi, bok := toInt(b)
	return aok && bok && ai == bi
}
