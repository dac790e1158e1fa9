package services

import (
	"context"
	"errors"
	"testing"

	"github.com/GrainArc/MopedMap/config"
	"github.com/GrainArc/MopedMap/methods"
	"github.com/GrainArc/MopedMap/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.OpenDB(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("OpenDB() error: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return db
}

func TestComponentServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewComponentService(openTestDB(t))
	if _, err := svc.EnsureProject(ctx, 7); err != nil {
		t.Fatal(err)
	}

	c := committed("c1", 101, 102)
	c.Description = "north"
	if err := svc.SaveComponent(ctx, c); err != nil {
		t.Fatalf("SaveComponent() error: %v", err)
	}

	got, err := svc.GetComponent(ctx, 7, "c1")
	if err != nil {
		t.Fatalf("GetComponent() error: %v", err)
	}
	if got.ComponentName != "Bike Lane" || got.Description != "north" || len(got.Features) != 2 {
		t.Errorf("Unexpected component %+v", got)
	}
	if id, _ := methods.FeatureID(got.Features[0], methods.PropID); id != "101" {
		t.Errorf("Expected first feature 101, got %s", id)
	}
	if label := got.Features[1].Properties[methods.PropLabel]; label != "Main St" {
		t.Errorf("Label not restored: %v", label)
	}

	c.Features = c.Features[:1]
	c.Description = "trimmed"
	if err := svc.SaveComponent(ctx, c); err != nil {
		t.Fatalf("SaveComponent() update error: %v", err)
	}
	list, err := svc.ListComponents(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || len(list[0].Features) != 1 || list[0].Description != "trimmed" {
		t.Errorf("Update not applied: %+v", list)
	}

	fc, err := svc.ProjectFeatures(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Properties[methods.PropComponentID] != "c1" {
		t.Errorf("Unexpected project features %+v", fc.Features)
	}

	if err := svc.DeleteComponent(ctx, 7, "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetComponent(ctx, 7, "c1"); !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("Expected ErrUnknownComponent, got %v", err)
	}
	if err := svc.DeleteComponent(ctx, 7, "c1"); !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("Expected ErrUnknownComponent on second delete, got %v", err)
	}
}

func TestComponentServiceOtherProject(t *testing.T) {
	ctx := context.Background()
	svc := NewComponentService(openTestDB(t))
	if err := svc.SaveComponent(ctx, committed("c1", 101)); err != nil {
		t.Fatal(err)
	}
	list, err := svc.ListComponents(ctx, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("Expected no components in project 8, got %d", len(list))
	}
	other := committed("c1", 101)
	other.ProjectID = 8
	if err := svc.SaveComponent(ctx, other); !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("Expected ErrUnknownComponent for foreign id, got %v", err)
	}
}

func TestEditorPersistsThroughService(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewComponentService(db)
	catalog, err := LoadComponentCatalog(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog.All()) != len(models.DefaultComponentTypes) {
		t.Fatalf("Expected default types, got %d", len(catalog.All()))
	}
	bike := catalog.Search("bike lane - prot", 1)
	if len(bike) != 1 {
		t.Fatalf("Search() found %d types", len(bike))
	}

	e, _ := newTestEditor(t, newNetwork(), svc)
	e.opts.Catalog = catalog
	startLines(t, e)
	click(t, e, lineHit(101))
	c, err := e.SaveDraft(ctx, ComponentInput{TypeID: bike[0].ID})
	if err != nil {
		t.Fatal(err)
	}

	stored, err := svc.ListComponents(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].ID != c.ID || stored[0].ComponentSubtype != "Protected" {
		t.Errorf("Unexpected stored components %+v", stored)
	}

	if err := e.DeleteComponent(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	stored, _ = svc.ListComponents(ctx, 7)
	if len(stored) != 0 {
		t.Errorf("Component should be deleted from storage")
	}
}

func TestLinkedFeaturesSurviveReload(t *testing.T) {
	ctx := context.Background()
	svc := NewComponentService(openTestDB(t))
	if _, err := svc.EnsureProject(ctx, 7); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*models.Component{committed("a", 101), committed("b", 102)} {
		if err := svc.SaveComponent(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	loaded, err := svc.ListComponents(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := newTestEditor(t, newNetwork(), svc, loaded...)
	if err := e.Select(methods.LayerLines, "102"); err != nil {
		t.Fatal(err)
	}
	if err := e.LinkSelectedToComponents(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := svc.ListComponents(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	e2, _ := newTestEditor(t, newNetwork(), svc, reloaded...)
	links := e2.Links()
	if got := links.ComponentsFor("102"); !sameSet(got, []string{"a", "b"}) {
		t.Errorf("Links for 102 after reload = %v, want a and b", got)
	}

	// 编辑 a 后保存，已关联的要素不应丢失
	if err := e2.EditComponent("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := e2.SaveDraft(ctx, ComponentInput{TypeID: 1}); err != nil {
		t.Fatal(err)
	}
	links = e2.Links()
	if got := links.ComponentsFor("102"); !sameSet(got, []string{"a", "b"}) {
		t.Errorf("Links for 102 after edit = %v, want a and b", got)
	}
}

func sameSet(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[string]bool, len(got))
	for _, s := range got {
		seen[s] = true
	}
	for _, s := range want {
		if !seen[s] {
			return false
		}
	}
	return true
}
