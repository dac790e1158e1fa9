package methods

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/GrainArc/MopedMap/models"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"
)

// FeatureToRow 将组件要素转换为数据库行，几何编码为 WKB
func FeatureToRow(componentID string, f *geojson.Feature) (models.ComponentFeature, error) {
	if f == nil || f.Geometry == nil {
		return models.ComponentFeature{}, fmt.Errorf("feature has no geometry")
	}
	geom, err := wkb.Marshal(f.Geometry)
	if err != nil {
		return models.ComponentFeature{}, fmt.Errorf("encode geometry: %w", err)
	}
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return models.ComponentFeature{}, fmt.Errorf("encode properties: %w", err)
	}
	sourceID, _ := FeatureID(f, PropID)
	label, _ := PropertyString(f.Properties[PropLabel])
	return models.ComponentFeature{
		ComponentID:  componentID,
		SourceID:     sourceID,
		LayerID:      LayerOf(f),
		Label:        label,
		GeometryType: f.Geometry.GeoJSONType(),
		Geom:         geom,
		Properties:   datatypes.JSON(props),
	}, nil
}

// RowToFeature 数据库行还原为 GeoJSON 要素
func RowToFeature(row models.ComponentFeature) (*geojson.Feature, error) {
	geom, err := wkb.Unmarshal(row.Geom)
	if err != nil {
		return nil, fmt.Errorf("decode geometry of feature %d: %w", row.ID, err)
	}
	f := geojson.NewFeature(geom)
	if len(row.Properties) > 0 {
		if err := json.Unmarshal(row.Properties, &f.Properties); err != nil {
			return nil, fmt.Errorf("decode properties of feature %d: %w", row.ID, err)
		}
	}
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	f.Properties[PropID] = row.SourceID
	f.Properties[PropLayerID] = row.LayerID
	f.Properties[PropLabel] = row.Label
	f.ID = row.SourceID
	return f, nil
}

// RowsToComponent 数据库中的组件及其要素还原为编辑用组件
func RowsToComponent(pc models.ProjectComponent) (*models.Component, error) {
	c := &models.Component{
		ID:                 pc.ID,
		ProjectID:          pc.ProjectID,
		ComponentTypeID:    pc.ComponentTypeID,
		ComponentName:      pc.ComponentName,
		ComponentSubtype:   pc.ComponentSubtype,
		Description:        pc.Description,
		LineRepresentation: pc.LineRepresentation,
		Features:           make([]*geojson.Feature, 0, len(pc.Features)),
	}
	rows := append([]models.ComponentFeature(nil), pc.Features...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	for _, row := range rows {
		f, err := RowToFeature(row)
		if err != nil {
			return nil, err
		}
		c.Features = append(c.Features, f)
	}
	return c, nil
}

// MakeFeatureCollections 每个组件一个 FeatureCollection，要素按来源图层分组后展开
func MakeFeatureCollections(components []models.ProjectComponent) (map[string]*geojson.FeatureCollection, error) {
	out := make(map[string]*geojson.FeatureCollection, len(components))
	for _, pc := range components {
		tables := make(map[string][]*geojson.Feature)
		for _, row := range pc.Features {
			f, err := RowToFeature(row)
			if err != nil {
				return nil, err
			}
			tables[row.LayerID] = append(tables[row.LayerID], f)
		}
		fc := geojson.NewFeatureCollection()
		fc.Features = GetAllComponentFeatures(pc.ID, tables)
		out[pc.ID] = fc
	}
	return out, nil
}
