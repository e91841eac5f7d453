package utils

import (
	"strings"
	"testing"
)

func TestGenAlias(t *testing.T) {
	for i := 0; i < 50; i++ {
		alias := GenAlias()

		parts := strings.Split(alias, " ")
		if len(parts) != 2 {
			t.Fatalf("GenAlias = %q; want two words", alias)
		}
		if !contains(aliasAdj, parts[0]) {
			t.Errorf("unknown adjective %q", parts[0])
		}
		if !contains(aliasFruit, parts[1]) {
			t.Errorf("unknown fruit %q", parts[1])
		}
	}
}

func contains(words []string, w string) bool {
	for _, v := range words {
		if v == w {
			return true
		}
	}
	return false
}
