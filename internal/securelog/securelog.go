package securelog

import (
	"fmt"
	"log"
	"runtime"
	"strings"
)

// Error logs an error without including user-provided data such as emails
// or invitation codes. It records the caller location and error type chain.
func Error(context string, err error) {
	if err == nil {
		return
	}
	loc := callerLocation(2)
	types := strings.Join(errorTypes(err), "->")
	if context == "" {
		log.Printf("error at %s types=%s", loc, types)
		return
	}
	log.Printf("error at %s context=%s types=%s", loc, context, types)
}

// Denied records an access decision by its machine reason only.
func Denied(context, reason string) {
	if reason == "" {
		return
	}
	log.Printf("denied at %s context=%s reason=%s", callerLocation(2), context, reason)
}

func callerLocation(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s:%d %s", file, line, name)
}

// errorTypes walks the wrap tree depth first, following both single and
// multi %w wrapping.
func errorTypes(err error) []string {
	types := []string{}
	seen := map[string]struct{}{}
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		name := fmt.Sprintf("%T", err)
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			types = append(types, name)
		}
		switch e := err.(type) {
		case interface{ Unwrap() error }:
			walk(e.Unwrap())
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	return types
}
