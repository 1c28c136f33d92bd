package runtime

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/aretw0/arbor/pkg/domain"
)

var (
	anySliceType = reflect.TypeOf([]any(nil))
	paramsType   = reflect.TypeOf(map[string]any(nil))
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)

// InvokeMethod calls a named method on target. Nodes implementing
// domain.MethodInvoker are asked first; otherwise the method is looked up by
// reflection under its exported name ("refresh_all" -> "RefreshAll").
//
// Supported reflective signatures, each optionally returning an error:
//
//	func()
//	func(params map[string]any)
//	func(args []any, params map[string]any)
//	func(args ...any)
func InvokeMethod(target domain.Node, name string, args []any, params map[string]any) error {
	if name == "" {
		return fmt.Errorf("%w: empty method name", domain.ErrMethodNotFound)
	}
	if inv, ok := target.(domain.MethodInvoker); ok {
		handled, err := inv.Invoke(name, args, params)
		if handled {
			return err
		}
	}

	m := reflect.ValueOf(target).MethodByName(exportName(name))
	if !m.IsValid() {
		return fmt.Errorf("%w: %s on %T", domain.ErrMethodNotFound, name, target)
	}
	return callMethod(m, name, args, params)
}

func callMethod(m reflect.Value, name string, args []any, params map[string]any) error {
	t := m.Type()
	if params == nil {
		params = map[string]any{}
	}

	var out []reflect.Value
	switch {
	case t.NumIn() == 0:
		out = m.Call(nil)
	case t.IsVariadic() && t.NumIn() == 1 && t.In(0) == anySliceType:
		out = m.CallSlice([]reflect.Value{reflect.ValueOf(args)})
	case t.NumIn() == 1 && t.In(0) == paramsType:
		out = m.Call([]reflect.Value{reflect.ValueOf(params)})
	case t.NumIn() == 2 && t.In(0) == anySliceType && t.In(1) == paramsType:
		out = m.Call([]reflect.Value{reflect.ValueOf(args), reflect.ValueOf(params)})
	default:
		return fmt.Errorf("%w: %s has unsupported signature %s", domain.ErrMethodNotFound, name, t)
	}

	if n := len(out); n > 0 && t.Out(n-1).Implements(errorType) {
		if err, _ := out[n-1].Interface().(error); err != nil {
			return err
		}
	}
	return nil
}

// exportName converts a snake_case or lower-case method name to Go's exported form.
func exportName(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' || r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
