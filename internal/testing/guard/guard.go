// Package guard is blank-imported by tests that construct app wiring, so
// app.InTestMode reports true for the whole test binary.
package guard

import "os"

func init() {
	if _, set := os.LookupEnv("AGRODISTRI_TEST_MODE"); !set {
		_ = os.Setenv("AGRODISTRI_TEST_MODE", "1")
	}
}
