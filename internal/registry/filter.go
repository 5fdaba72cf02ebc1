package registry

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"
)

// messageFilter wraps a compiled CEL program evaluated per delivery during
// fan-out. When the expression is empty the filter is disabled and every
// message passes.
type messageFilter struct {
	prog    cel.Program
	enabled bool
}

func newMessageFilter(expr string) (messageFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return messageFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("channel", cel.StringType),
		// Parsed message body (map/list/values) for field filtering
		cel.Variable("message", cel.DynType),
		cel.Variable("size", cel.IntType),
	)
	if err != nil {
		return messageFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return messageFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return messageFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return messageFilter{}, err
	}
	return messageFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a message. When disabled,
// returns true; evaluation errors also deliver rather than drop.
func (f messageFilter) Eval(channelID string, message any) bool {
	if !f.enabled {
		return true
	}
	raw, err := json.Marshal(message)
	if err != nil {
		return true
	}
	var msgObj any
	_ = json.Unmarshal(raw, &msgObj)
	out, _, err := f.prog.Eval(map[string]any{
		"channel": channelID,
		"message": msgObj,
		"size":    int64(len(raw)),
	})
	if err != nil {
		return true
	}
	b, ok := out.Value().(bool)
	return ok && b
}
