package di

import (
	"surge/internal/diag"
	"surge/internal/mir"
	"surge/internal/types"
)

// CheckFunc runs definite-initialization checking for every memory object
// discovered in f (§3-§7), reporting diagnostics to reporter. It returns
// true if any object in f had a diagnostic reported against it.
//
// This is the single entry point internal/driver calls per mir.Func; it
// owns object discovery so callers never construct a MemoryObject by hand.
func CheckFunc(f *mir.Func, typesIn *types.Interner, reporter diag.Reporter, opts Options) bool {
	hadError := false
	for _, obj := range DiscoverObjects(f, typesIn) {
		c := NewChecker(f, obj, reporter, typesIn, opts)
		c.Run()
		if c.HadError() {
			hadError = true
		}
	}
	return hadError
}
