package version

import "testing"

func mustParse(t *testing.T, s string) Constraint {
	t.Helper()
	c, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return c
}

func TestIntersectCommutative(t *testing.T) {
	exprs := []string{"*", ">=1.0.0", "<2.0.0", "~>1.2", "==1.5.0", "none"}
	for _, as := range exprs {
		for _, bs := range exprs {
			a := mustParse(t, as)
			b := mustParse(t, bs)
			if Intersect(a, b).String() != Intersect(b, a).String() {
				t.Errorf("Intersect(%s,%s) != Intersect(%s,%s)", as, bs, bs, as)
			}
		}
	}
}

func TestIntersectWithAnyIsIdentity(t *testing.T) {
	exprs := []string{">=1.0.0", "<2.0.0", "~>1.2", "==1.5.0"}
	for _, es := range exprs {
		c := mustParse(t, es)
		if Intersect(c, any).String() != c.String() {
			t.Errorf("Intersect(%s, Any) != %s", es, es)
		}
	}
}

func TestMatchesIntersectIffMatchesBoth(t *testing.T) {
	a := mustParse(t, ">=1.0.0")
	b := mustParse(t, "<2.0.0")
	ab := Intersect(a, b)

	vs := []string{"0.9.0", "1.0.0", "1.5.0", "1.9.9", "2.0.0", "2.1.0"}
	for _, vs := range vs {
		v := MustRelease(vs)
		want := a.Matches(v) && b.Matches(v)
		got := ab.Matches(v)
		if got != want {
			t.Errorf("Matches(intersect, %s) = %v, want %v", vs, got, want)
		}
	}
}

// TestTildeLowering is end-to-end scenario 1 from spec §8: recipe A depends
// on B "~>1.2"; catalog has B at 1.1.9, 1.2.0, 1.2.7, 1.3.0; selection
// picks 1.2.7 (the highest admissible release).
func TestTildeLowering(t *testing.T) {
	c := mustParse(t, "~>1.2")
	catalog := []string{"1.1.9", "1.2.0", "1.2.7", "1.3.0"}

	var best *Release
	for _, vs := range catalog {
		v := MustRelease(vs)
		if !c.Matches(v) {
			continue
		}
		if best == nil || best.Less(v) {
			r := v
			best = &r
		}
	}
	if best == nil || best.String() != "1.2.7" {
		t.Fatalf("tilde lowering picked %v, want 1.2.7", best)
	}
}

func TestExactLowering(t *testing.T) {
	c := mustParse(t, "==1.0.0")
	if !c.Matches(MustRelease("1.0.0")) {
		t.Error("==1.0.0 should match 1.0.0")
	}
	if c.Matches(MustRelease("1.0.1")) {
		t.Error("==1.0.0 should not match 1.0.1")
	}
}

func TestDiamondWithOverlap(t *testing.T) {
	// root depends on A ">=1.0 <2.0" and (via B) A ">=1.3"
	a1 := mustParse(t, ">=1.0.0 <2.0.0")
	a2 := mustParse(t, ">=1.3.0")
	eff := Intersect(a1, a2)

	catalog := []string{"1.2.0", "1.3.0", "1.4.0"}
	var best *Release
	for _, vs := range catalog {
		v := MustRelease(vs)
		if !eff.Matches(v) {
			continue
		}
		if best == nil || best.Less(v) {
			r := v
			best = &r
		}
	}
	if best == nil || best.String() != "1.4.0" {
		t.Fatalf("diamond-with-overlap picked %v, want 1.4.0", best)
	}
}

func TestDiamondWithoutOverlapIsNone(t *testing.T) {
	a1 := mustParse(t, ">=1.0.0 <1.3.0")
	a2 := mustParse(t, ">=1.4.0")
	if !IsNone(Intersect(a1, a2)) {
		t.Fatalf("expected disjoint constraints to intersect to None")
	}
}

func TestBranchAndPathIntersectOnlyByIdentity(t *testing.T) {
	b1 := NewBranchConstraint("master")
	b2 := NewBranchConstraint("master")
	b3 := NewBranchConstraint("develop")

	if IsNone(Intersect(b1, b2)) {
		t.Error("identical branches should intersect to themselves")
	}
	if !IsNone(Intersect(b1, b3)) {
		t.Error("distinct branches should intersect to None")
	}

	p1 := NewPathConstraint(NewPath("/a"))
	p2 := NewPathConstraint(NewPath("/a"))
	p3 := NewPathConstraint(NewPath("/b"))
	if IsNone(Intersect(p1, p2)) {
		t.Error("identical paths should intersect to themselves")
	}
	if !IsNone(Intersect(p1, p3)) {
		t.Error("distinct paths should intersect to None")
	}
}

func TestIntervalVsPointerPolicy(t *testing.T) {
	iv := mustParse(t, ">=1.0.0")
	branch := NewBranchConstraint("master")

	if !IsNone(IntersectWithPolicy(iv, branch, StrictIntersect)) {
		t.Error("StrictIntersect of interval and branch should be None")
	}
	if got := IntersectWithPolicy(iv, branch, PointerWins); got.String() != branch.String() {
		t.Errorf("PointerWins should yield the branch, got %s", got)
	}
}

func TestEmptyRangeIsNone(t *testing.T) {
	lo := MustRelease("2.0.0")
	hi := MustRelease("1.0.0")
	c := NewInterval(&lo, &hi, true, true)
	if !IsNone(c) {
		t.Error("an inverted range should collapse to None")
	}
}
