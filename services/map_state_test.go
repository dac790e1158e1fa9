package services

import (
	"errors"
	"testing"
)

func TestMapStateTransitions(t *testing.T) {
	creating := CreatingComponent{LinkMode: LinkLines}
	editing := EditingComponent{ComponentID: "c1", LinkMode: LinkPoints}

	tests := []struct {
		name    string
		run     func() (MapState, error)
		want    MapState
		wantErr bool
	}{
		{"create with known mode", func() (MapState, error) { return StartCreate(Viewing{}, LinkLines) }, creating, false},
		{"create needs link mode", func() (MapState, error) { return StartCreate(Viewing{}, LinkNone) }, SelectingLinkMode{}, false},
		{"create while editing", func() (MapState, error) { return StartCreate(editing, LinkLines) }, editing, true},
		{"choose for create", func() (MapState, error) { return ChooseLinkMode(SelectingLinkMode{}, LinkLines) }, creating, false},
		{"choose for edit", func() (MapState, error) { return ChooseLinkMode(SelectingLinkMode{EditID: "c1"}, LinkPoints) }, editing, false},
		{"choose empty mode", func() (MapState, error) { return ChooseLinkMode(SelectingLinkMode{}, LinkNone) }, SelectingLinkMode{}, true},
		{"choose while viewing", func() (MapState, error) { return ChooseLinkMode(Viewing{}, LinkLines) }, Viewing{}, true},
		{"edit from viewing", func() (MapState, error) { return StartEdit(Viewing{}, "c1", LinkPoints) }, editing, false},
		{"draw from creating", func() (MapState, error) { return StartDrawing(creating) }, Drawing{Parent: creating}, false},
		{"draw from viewing", func() (MapState, error) { return StartDrawing(Viewing{}) }, Viewing{}, true},
		{"draw twice", func() (MapState, error) { return StartDrawing(Drawing{Parent: creating}) }, Drawing{Parent: creating}, true},
		{"stop drawing", func() (MapState, error) { return StopDrawing(Drawing{Parent: editing}) }, editing, false},
		{"stop without drawing", func() (MapState, error) { return StopDrawing(creating) }, creating, true},
		{"commit creating", func() (MapState, error) { return Commit(creating) }, Viewing{}, false},
		{"commit while drawing", func() (MapState, error) { return Commit(Drawing{Parent: creating}) }, Drawing{Parent: creating}, true},
		{"commit while viewing", func() (MapState, error) { return Commit(Viewing{}) }, Viewing{}, true},
		{"cancel drawing", func() (MapState, error) { return Cancel(Drawing{Parent: editing}) }, Viewing{}, false},
		{"cancel link mode dialog", func() (MapState, error) { return Cancel(SelectingLinkMode{}) }, Viewing{}, false},
		{"cancel while viewing", func() (MapState, error) { return Cancel(Viewing{}) }, Viewing{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("Expected ErrInvalidTransition, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected state %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestActiveLinkMode(t *testing.T) {
	tests := []struct {
		state MapState
		want  LinkMode
	}{
		{Viewing{}, LinkNone},
		{SelectingLinkMode{}, LinkNone},
		{CreatingComponent{LinkMode: LinkPoints}, LinkPoints},
		{EditingComponent{ComponentID: "x", LinkMode: LinkLines}, LinkLines},
		{Drawing{Parent: CreatingComponent{LinkMode: LinkPoints}}, LinkPoints},
	}
	for _, tt := range tests {
		if got := ActiveLinkMode(tt.state); got != tt.want {
			t.Errorf("ActiveLinkMode(%#v) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	v := Describe(Drawing{Parent: EditingComponent{ComponentID: "c9", LinkMode: LinkLines}})
	if v.Mode != ModeDrawing || v.ParentMode != ModeEditingComponent {
		t.Errorf("Unexpected modes %+v", v)
	}
	if v.ComponentID != "c9" || v.LinkMode != LinkLines {
		t.Errorf("Unexpected view %+v", v)
	}
}

func TestParseLinkMode(t *testing.T) {
	if m, err := ParseLinkMode("points"); err != nil || m != LinkPoints {
		t.Errorf("ParseLinkMode(points) = %q, %v", m, err)
	}
	if _, err := ParseLinkMode("polygons"); err == nil {
		t.Error("Expected error for unknown link mode")
	}
}
