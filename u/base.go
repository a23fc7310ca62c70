package u

import "fmt"

// PanicIf panics if cond is true. args[0], if present, is a format string
func PanicIf(cond bool, args ...any) {
	if !cond {
		return
	}
	panic(panicMsg("condition failed", args))
}

// PanicIfErr panics if err is not nil
func PanicIfErr(err error, args ...any) {
	if err == nil {
		return
	}
	if len(args) == 0 {
		panic(err)
	}
	panic(fmt.Errorf("%s: %w", panicMsg("", args), err))
}

func panicMsg(def string, args []any) string {
	if len(args) == 0 {
		return def
	}
	s := fmt.Sprintf("%v", args[0])
	if len(args) > 1 {
		s = fmt.Sprintf(s, args[1:]...)
	}
	return s
}
