package solver

import "testing"

func TestWorkQueueHasPrefixExactAndSubpackageOnly(t *testing.T) {
	q := newWorkQueue(func(i, j int) bool { return false })
	q.Push(pending{name: "foobar"})

	if q.hasPrefix("foo") {
		t.Error("\"foo\" should not match an unrelated enqueued name \"foobar\"")
	}
	if !q.hasPrefix("foobar") {
		t.Error("\"foobar\" should match itself")
	}

	q.Push(pending{name: "parent:child"})
	if !q.hasPrefix("parent") {
		t.Error("\"parent\" should match an enqueued \"parent:child\" subpackage reference")
	}
	if q.hasPrefix("par") {
		t.Error("\"par\" should not match \"parent:child\" by raw string prefix")
	}
}
