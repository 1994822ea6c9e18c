package pipeline

import (
	"strings"
	"testing"
)

func TestMergeMemLimit(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/home/app"}

	t.Run("appends limit when unset", func(t *testing.T) {
		env := mergeMemLimit(base, 512)

		found := false
		for _, kv := range env {
			if kv == "GOMEMLIMIT=512MiB" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected GOMEMLIMIT=512MiB in %v", env)
		}
	})

	t.Run("operator value wins", func(t *testing.T) {
		env := mergeMemLimit(append(base, "GOMEMLIMIT=2GiB"), 512)

		count := 0
		for _, kv := range env {
			if strings.HasPrefix(kv, "GOMEMLIMIT=") {
				count++
				if kv != "GOMEMLIMIT=2GiB" {
					t.Errorf("operator limit overwritten: %s", kv)
				}
			}
		}
		if count != 1 {
			t.Errorf("expected exactly one GOMEMLIMIT entry, got %d", count)
		}
	})

	t.Run("zero limit leaves env untouched", func(t *testing.T) {
		env := mergeMemLimit(base, 0)
		if len(env) != len(base) {
			t.Errorf("expected unchanged env, got %v", env)
		}
	})
}
