package flow

import (
	"errors"
	"reflect"
	"testing"
)

// --- Graph Tests ---

func TestGraph_Add_Invalid(t *testing.T) {
	g := NewGraph()

	tests := []struct {
		name string
		step *Step
	}{
		{"nil step", nil},
		{"empty name", &Step{OutputKey: "x", Generator: &fakeGenerator{}}},
		{"empty output key", &Step{Name: "a", Generator: &fakeGenerator{}}},
		{"nil generator", &Step{Name: "a", OutputKey: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Add(tt.step); !errors.Is(err, ErrInvalidStep) {
				t.Errorf("expected ErrInvalidStep, got %v", err)
			}
		})
	}

	if g.Len() != 0 {
		t.Errorf("invalid steps should not be added, got %d", g.Len())
	}
}

func TestGraph_Add_SameStepTwice(t *testing.T) {
	g := NewGraph()
	a, _ := newStep("a", "x", "")

	mustAdd(t, g, a)
	if _, err := g.Add(a); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep, got %v", err)
	}
}

func TestGraph_Connect_DuplicateOutputKeys(t *testing.T) {
	g := NewGraph()
	root, _ := newStep("root", "r", "")
	a, _ := newStep("a", "same", "")
	b, _ := newStep("b", "same", "")

	rootID := mustAdd(t, g, root)
	aID := mustAdd(t, g, a)
	bID := mustAdd(t, g, b)

	err := g.Connect(rootID, aID, bID)
	if !errors.Is(err, ErrDuplicateOutputKey) {
		t.Fatalf("expected ErrDuplicateOutputKey, got %v", err)
	}

	var gerr *GraphError
	if !errors.As(err, &gerr) || gerr.Key != "same" {
		t.Errorf("error should name the key, got %v", err)
	}

	// Граф не изменился
	if len(g.Next(rootID)) != 0 {
		t.Error("rejected connect must not add edges")
	}
	if len(g.Parents(aID)) != 0 || len(g.Parents(bID)) != 0 {
		t.Error("rejected connect must not add parents")
	}
}

func TestGraph_Connect_DuplicateInComponent(t *testing.T) {
	g := NewGraph()
	a, _ := newStep("a", "x", "")
	b, _ := newStep("b", "y", "")
	dupName, _ := newStep("a", "z", "")
	dupKey, _ := newStep("c", "x", "")

	aID := mustAdd(t, g, a)
	bID := mustAdd(t, g, b)
	dupNameID := mustAdd(t, g, dupName)
	dupKeyID := mustAdd(t, g, dupKey)

	mustConnect(t, g, aID, bID)

	if err := g.Connect(bID, dupNameID); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if err := g.Connect(bID, dupKeyID); !errors.Is(err, ErrDuplicateOutputKey) {
		t.Errorf("expected ErrDuplicateOutputKey, got %v", err)
	}
	if len(g.Next(bID)) != 0 {
		t.Error("rejected connect must not add edges")
	}
}

func TestGraph_Connect_Cycle(t *testing.T) {
	g := NewGraph()
	a, _ := newStep("a", "x", "")
	b, _ := newStep("b", "y", "")
	c, _ := newStep("c", "z", "")

	aID := mustAdd(t, g, a)
	bID := mustAdd(t, g, b)
	cID := mustAdd(t, g, c)

	mustConnect(t, g, aID, bID)
	mustConnect(t, g, bID, cID)

	// c → a замкнул бы a → b → c → a
	err := g.Connect(cID, aID)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if len(g.Next(cID)) != 0 {
		t.Error("graph must be unchanged after rejected connect")
	}
	if len(g.Parents(aID)) != 0 {
		t.Error("a should have no parents")
	}

	// Петля на себя
	if err := g.Connect(aID, aID); !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle for self loop, got %v", err)
	}
}

func TestGraph_Connect_ExistingEdge(t *testing.T) {
	g := NewGraph()
	a, _ := newStep("a", "x", "")
	b, _ := newStep("b", "y", "")

	aID := mustAdd(t, g, a)
	bID := mustAdd(t, g, b)

	mustConnect(t, g, aID, bID)
	mustConnect(t, g, aID, bID)

	if got := g.Next(aID); len(got) != 1 {
		t.Errorf("expected single edge, got %v", got)
	}
	if got := g.Parents(bID); len(got) != 1 {
		t.Errorf("expected single parent, got %v", got)
	}
}

func TestGraph_Connect_UnknownStep(t *testing.T) {
	g := NewGraph()
	a, _ := newStep("a", "x", "")
	aID := mustAdd(t, g, a)

	if err := g.Connect(aID, StepID(42)); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
	if err := g.Connect(StepID(-1), aID); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
}

func TestGraph_Reachable(t *testing.T) {
	g := NewGraph()
	a, _ := newStep("a", "x", "")
	b, _ := newStep("b", "y", "")
	c, _ := newStep("c", "z", "")

	aID := mustAdd(t, g, a)
	bID := mustAdd(t, g, b)
	cID := mustAdd(t, g, c)
	mustConnect(t, g, aID, bID)
	mustConnect(t, g, bID, cID)

	if !g.Reachable(aID, cID) {
		t.Error("c should be reachable from a")
	}
	if g.Reachable(cID, aID) {
		t.Error("a should not be reachable from c")
	}
}

// --- Flow Tests ---

func TestNew_BreadthFirstOrder(t *testing.T) {
	g := NewGraph()
	root, _ := newStep("root", "r", "", "topic")
	a, _ := newStep("a", "x", "", "r")
	b, _ := newStep("b", "y", "", "r", "style")
	c, _ := newStep("c", "z", "", "x", "y")

	rootID := mustAdd(t, g, root)
	aID := mustAdd(t, g, a)
	bID := mustAdd(t, g, b)
	cID := mustAdd(t, g, c)
	mustConnect(t, g, rootID, aID, bID)
	mustConnect(t, g, aID, cID)
	mustConnect(t, g, bID, cID)

	f := mustFlow(t, g, rootID)

	var names []string
	for _, s := range f.Steps() {
		names = append(names, s.Name)
	}
	if !reflect.DeepEqual(names, []string{"root", "a", "b", "c"}) {
		t.Errorf("unexpected order: %v", names)
	}

	if got := f.InputKeys(); !reflect.DeepEqual(got, []string{"r", "style", "topic", "x", "y"}) {
		t.Errorf("unexpected input keys: %v", got)
	}
	if got := f.OutputKeys(); !reflect.DeepEqual(got, []string{"r", "x", "y", "z"}) {
		t.Errorf("unexpected output keys: %v", got)
	}
	if f.Root() != root {
		t.Error("root mismatch")
	}
	if s, ok := f.StepByName("c"); !ok || s != c {
		t.Error("StepByName should find c")
	}
}

func TestNew_SubgraphOnly(t *testing.T) {
	g := NewGraph()
	a, _ := newStep("a", "x", "")
	b, _ := newStep("b", "y", "")
	mustAdd(t, g, a)
	bID := mustAdd(t, g, b)

	f := mustFlow(t, g, bID)
	if len(f.Steps()) != 1 {
		t.Errorf("flow should contain only steps reachable from root, got %d", len(f.Steps()))
	}
}

func TestNew_RevalidatesNames(t *testing.T) {
	g := NewGraph()
	a, _ := newStep("a", "x", "")
	b, _ := newStep("b", "y", "")
	aID := mustAdd(t, g, a)
	bID := mustAdd(t, g, b)
	mustConnect(t, g, aID, bID)

	// Имя изменено после сборки графа
	b.Name = "a"

	if _, err := New(g, aID); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestNew_UnknownRoot(t *testing.T) {
	if _, err := New(NewGraph(), 0); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
}

func TestFlow_CheckInputs(t *testing.T) {
	g := NewGraph()
	root, _ := newStep("root", "title", "", "topic", "style")
	next, _ := newStep("next", "lyrics", "", "title", "mood")
	rootID := mustAdd(t, g, root)
	nextID := mustAdd(t, g, next)
	mustConnect(t, g, rootID, nextID)

	f := mustFlow(t, g, rootID)

	err := f.CheckInputs(map[string]string{"topic": "loss"})
	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingInputError, got %v", err)
	}
	if !reflect.DeepEqual(missing.Keys, []string{"mood", "style"}) {
		t.Errorf("unexpected missing keys: %v", missing.Keys)
	}
	if !errors.Is(err, ErrMissingInput) {
		t.Error("should unwrap to ErrMissingInput")
	}
	if err.Error() != "missing required input: mood, style" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	if err := f.CheckInputs(map[string]string{"topic": "loss", "style": "folk", "mood": "sad"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFlow_BlockedSteps(t *testing.T) {
	g := NewGraph()
	root, _ := newStep("root", "r", "R")
	outside, _ := newStep("outside", "o", "O")
	child, _ := newStep("child", "c", "C")

	rootID := mustAdd(t, g, root)
	outsideID := mustAdd(t, g, outside)
	childID := mustAdd(t, g, child)
	mustConnect(t, g, rootID, childID)
	mustConnect(t, g, outsideID, childID)

	f := mustFlow(t, g, rootID)

	blocked := f.BlockedSteps(nil)
	if len(blocked) != 1 {
		t.Fatalf("expected 1 blocked step, got %d", len(blocked))
	}
	if blocked[0].Step != "child" || !reflect.DeepEqual(blocked[0].Keys, []string{"o"}) {
		t.Errorf("unexpected blocked step: %v", blocked[0])
	}

	if blocked := f.BlockedSteps(map[string]string{"o": "from user"}); len(blocked) != 0 {
		t.Errorf("user input should unblock step, got %v", blocked)
	}

	if blocked := mustFlow(t, g, outsideID).BlockedSteps(nil); len(blocked) != 1 || blocked[0].Step != "child" {
		t.Errorf("flow from outside should report child blocked by root, got %v", blocked)
	}
}
