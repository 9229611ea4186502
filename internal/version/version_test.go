package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	oldV, oldSHA := Version, GitSHA
	t.Cleanup(func() { Version, GitSHA = oldV, oldSHA })

	Version, GitSHA = "v1.2.3", "abc1234"
	got := String()
	for _, want := range []string{"huskyctl v1.2.3", "commit abc1234"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
	if Commit() != "abc1234" {
		t.Errorf("Commit() = %q", Commit())
	}
}
