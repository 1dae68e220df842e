//go:build property

package template

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func identifierGen() gopter.Gen {
	return gen.Identifier().SuchThat(func(s string) bool { return s != "" })
}

func TestExtractVariablesProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every declared placeholder is extracted", prop.ForAll(
		func(names []string) bool {
			var b strings.Builder
			for _, n := range names {
				b.WriteString("text {" + n + "} ")
			}
			got := ExtractVariables(b.String())
			set := make(map[string]bool, len(got))
			for _, g := range got {
				set[g] = true
			}
			for _, n := range names {
				if !set[n] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(identifierGen()),
	))

	properties.Property("results are distinct", prop.ForAll(
		func(s string) bool {
			seen := map[string]bool{}
			for _, n := range ExtractVariables(s) {
				if seen[n] {
					return false
				}
				seen[n] = true
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("results are trimmed and brace free", prop.ForAll(
		func(s string) bool {
			for _, n := range ExtractVariables(s) {
				if n == "" || n != strings.TrimSpace(n) || strings.ContainsAny(n, "{}") {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("brace-free prefix changes nothing", prop.ForAll(
		func(s string) bool {
			a := ExtractVariables(s)
			b := ExtractVariables("Dear customer, " + s)
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
