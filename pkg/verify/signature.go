package verify

import (
	"reflect"

	"github.com/pkg/errors"
)

// ReflectSignature builds a Signature from a Go func value, standing in for
// what an external contract parser would resolve from source (spec.md
// §4.9's Signature Reflector). names supplies parameter names in order
// (reflect cannot recover them); pass nil to get positional names "arg_a",
// "arg_b", ... instead. The last parameter of a variadic fn is reported with
// VariadicPositional and ElemType set to its slice element type.
func ReflectSignature(fn any, names []string) (Signature, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return Signature{}, errors.Errorf("verify: ReflectSignature requires a func, got %s", v.Kind())
	}
	t := v.Type()

	sig := Signature{FuncValue: v}
	if t.NumOut() > 0 {
		sig.Return = t.Out(0)
	}

	n := t.NumIn()
	for i := 0; i < n; i++ {
		pt := t.In(i)
		name := defaultArgName(i)
		if names != nil && i < len(names) {
			name = names[i]
		}
		if i == n-1 && t.IsVariadic() {
			sig.Variadic = VariadicPositional
			sig.ElemType = pt.Elem()
			sig.Params = append(sig.Params, Param{Name: name, Type: pt.Elem()})
			continue
		}
		sig.Params = append(sig.Params, Param{Name: name, Type: pt})
	}
	return sig, nil
}

// ReflectMethodSignature is ReflectSignature for a bound method value
// (reflect.Value.Method(i) or MethodByName), threading the receiver's type
// through as Signature.Receiver rather than as the first Param.
func ReflectMethodSignature(recv reflect.Value, method reflect.Method, names []string) (Signature, error) {
	sig, err := ReflectSignature(recv.Method(method.Index).Interface(), names)
	if err != nil {
		return Signature{}, err
	}
	sig.Receiver = &Param{Name: "self", Type: recv.Type()}
	return sig, nil
}

func defaultArgName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "arg_" + string(letters[i])
	}
	return "arg"
}

// FreshArgs manufactures one symbolic CallFrame.Args map for sig: one fresh
// proxy per parameter (and the receiver, if sig.Receiver is set). A
// positional-variadic tail becomes a KindList proxy of its element type. A
// VariadicKeyword tail gets no special handling: its parameter is built from
// its Param.Type like any other, and the keys of a map built that way stay
// symbolic rather than being made concrete strings.
func FreshArgs(ss *StateSpace, sig Signature) (map[string]SymbolicValue, error) {
	args := make(map[string]SymbolicValue, len(sig.Params)+1)
	if sig.Receiver != nil {
		self, err := ss.Factory().FreshReceiverOfType(sig.Receiver.Type, ss.FreshName(sig.Receiver.Name))
		if err != nil {
			return nil, err
		}
		args[sig.Receiver.Name] = self
	}
	for i, p := range sig.Params {
		isVariadicTail := sig.Variadic == VariadicPositional && i == len(sig.Params)-1
		if isVariadicTail {
			list, err := NewBoundedList(ss, sig.ElemType, 3, p.Name)
			if err != nil {
				return nil, err
			}
			args[p.Name] = list
			continue
		}
		v, err := ss.Factory().FreshOfType(p.Type, ss.FreshName(p.Name))
		if err != nil {
			return nil, err
		}
		args[p.Name] = v
	}
	return args, nil
}
