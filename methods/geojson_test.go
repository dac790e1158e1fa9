package methods

import (
	"testing"

	"github.com/GrainArc/MopedMap/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestFeatureRowRoundTrip(t *testing.T) {
	src := NormalizeFeature(street("Main St", orb.LineString{{1, 2}, {3, 4}}), "FULL_STREET_NAME", LayerLines, "Main St")

	row, err := FeatureToRow("comp-1", src)
	if err != nil {
		t.Fatalf("FeatureToRow() error: %v", err)
	}
	if row.SourceID != "Main St" || row.LayerID != LayerLines || row.GeometryType != "LineString" {
		t.Errorf("Unexpected row: %+v", row)
	}

	f, err := RowToFeature(row)
	if err != nil {
		t.Fatalf("RowToFeature() error: %v", err)
	}
	ls, ok := f.Geometry.(orb.LineString)
	if !ok || !ls.Equal(orb.LineString{{1, 2}, {3, 4}}) {
		t.Errorf("Geometry not restored: %v", f.Geometry)
	}
	if LayerOf(f) != LayerLines || f.Properties[PropLabel] != "Main St" {
		t.Errorf("Properties not restored: %v", f.Properties)
	}
}

func TestFeatureToRowRequiresGeometry(t *testing.T) {
	if _, err := FeatureToRow("c", &geojson.Feature{Properties: geojson.Properties{}}); err == nil {
		t.Error("Expected error for feature without geometry")
	}
}

func TestMakeFeatureCollections(t *testing.T) {
	line, _ := FeatureToRow("c1", NormalizeFeature(segment(1, ""), "CTN_SEGMENT_ID", LayerLines, "A"))
	pt, _ := FeatureToRow("c1", NormalizeFeature(point(2), "INTERSECTION_ID", LayerPoints, "B"))

	got, err := MakeFeatureCollections([]models.ProjectComponent{
		{ID: "c1", Features: []models.ComponentFeature{line, pt}},
		{ID: "c2"},
	})
	if err != nil {
		t.Fatalf("MakeFeatureCollections() error: %v", err)
	}
	if len(got["c1"].Features) != 2 {
		t.Errorf("Expected 2 features for c1, got %d", len(got["c1"].Features))
	}
	if len(got["c2"].Features) != 0 {
		t.Errorf("Expected no features for c2, got %d", len(got["c2"].Features))
	}
	for _, f := range got["c1"].Features {
		if f.Properties[PropComponentID] != "c1" {
			t.Errorf("Expected project_component_id c1, got %v", f.Properties[PropComponentID])
		}
	}
}
