//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/aivi-lang/aivi/aivi"
)

// checkAndShowTypes takes the YAML source of one module and returns its
// diagnostics or the types of its bindings.
func checkAndShowTypes(_ js.Value, args []js.Value) (ret any) {
	defer func() {
		if r := recover(); r != nil {
			ret = "compiler panicked: " + fmt.Sprint(r)
		}
	}()
	if len(args) == 0 {
		return "no program given"
	}
	return aivi.CheckAndShowTypes(context.Background(), "program.yaml", []byte(args[0].String()))
}

func main() {
	js.Global().Set("CheckAndShowTypes", js.FuncOf(checkAndShowTypes))

	// wait indefinitely so that Go does not terminate execution
	// and the function remains available
	<-make(chan struct{})
}
