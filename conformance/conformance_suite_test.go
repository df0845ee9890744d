// Package conformance cross-checks the three execution strategies in
// package backend (interpret, jit, compile) against each other and against
// the design's fixed end-to-end scenarios. Any divergence between backends
// here is a fatal bug (design §4.3: "A conformance suite exercises
// identical IRs across backends; any divergence is a fatal bug").
package conformance

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConformance(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Backend Conformance Suite")
}
