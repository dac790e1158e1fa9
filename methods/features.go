package methods

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 路网图层标识，写入要素属性 _layerId
const (
	LayerLines  = "ctn-lines"
	LayerPoints = "ctn-points"
)

// 要素纳入项目后附加的属性
const (
	PropID          = "id"
	PropLayerID     = "_layerId"
	PropLabel       = "_label"
	PropComponentID = "project_component_id"
)

// 几何大类
const (
	GeomLine    = "line"
	GeomPoint   = "point"
	GeomPolygon = "polygon"
)

// PropertyString 将属性值统一为字符串，数字不带多余小数位
func PropertyString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

// FeatureID 读取要素的唯一标识属性
func FeatureID(f *geojson.Feature, idProp string) (string, bool) {
	if f == nil || f.Properties == nil {
		return "", false
	}
	return PropertyString(f.Properties[idProp])
}

// LayerOf 要素来源图层
func LayerOf(f *geojson.Feature) string {
	if f == nil || f.Properties == nil {
		return ""
	}
	s, _ := f.Properties[PropLayerID].(string)
	return s
}

// GeometryFamily 几何大类：line / point / polygon
func GeometryFamily(g orb.Geometry) string {
	if g == nil {
		return ""
	}
	t := strings.ToLower(g.GeoJSONType())
	switch {
	case strings.Contains(t, GeomLine):
		return GeomLine
	case strings.Contains(t, GeomPoint):
		return GeomPoint
	case strings.Contains(t, GeomPolygon):
		return GeomPolygon
	}
	return ""
}

// LayerForFamily 几何大类对应的路网图层
func LayerForFamily(family string) string {
	if family == GeomPoint {
		return LayerPoints
	}
	return LayerLines
}

// FilterFeatureTypes 只保留几何类型（不区分大小写）包含 geomType 的要素，
// "line" 同时匹配 LineString 与 MultiLineString
func FilterFeatureTypes(fc *geojson.FeatureCollection, geomType string) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	needle := strings.ToLower(geomType)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if strings.Contains(strings.ToLower(f.Geometry.GeoJSONType()), needle) {
			out.Append(f)
		}
	}
	return out
}

// FeatureTypeMemo 按集合指针与类型缓存 FilterFeatureTypes 结果，
// 传入的集合不能被原地修改
type FeatureTypeMemo struct {
	mu     sync.Mutex
	source *geojson.FeatureCollection
	cache  map[string]*geojson.FeatureCollection
}

func (m *FeatureTypeMemo) Get(fc *geojson.FeatureCollection, geomType string) *geojson.FeatureCollection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.source != fc || m.cache == nil {
		m.source = fc
		m.cache = make(map[string]*geojson.FeatureCollection)
	}
	if cached, ok := m.cache[geomType]; ok {
		return cached
	}
	out := FilterFeatureTypes(fc, geomType)
	m.cache[geomType] = out
	return out
}

// DedupeFeatures 按 idProp 去重，保留首次出现的要素，顺序不变。
// 没有 idProp 的要素原样保留
func DedupeFeatures(features []*geojson.Feature, idProp string) []*geojson.Feature {
	return dedupe(features, func(f *geojson.Feature) (string, bool) {
		return FeatureID(f, idProp)
	})
}

// DedupeLayerFeatures 按 (idProp, _layerId) 去重
func DedupeLayerFeatures(features []*geojson.Feature, idProp string) []*geojson.Feature {
	return dedupe(features, func(f *geojson.Feature) (string, bool) {
		id, ok := FeatureID(f, idProp)
		if !ok {
			return "", false
		}
		return id + "\x00" + LayerOf(f), true
	})
}

func dedupe(features []*geojson.Feature, key func(*geojson.Feature) (string, bool)) []*geojson.Feature {
	seen := make(map[string]struct{}, len(features))
	out := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if f == nil {
			continue
		}
		k, ok := key(f)
		if ok {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, f)
	}
	return out
}

// MergeFeatureCollections 合并两个集合并按 idProp 去重，a 中的要素优先
func MergeFeatureCollections(a, b *geojson.FeatureCollection, idProp string) *geojson.FeatureCollection {
	var all []*geojson.Feature
	if a != nil {
		all = append(all, a.Features...)
	}
	if b != nil {
		all = append(all, b.Features...)
	}
	out := geojson.NewFeatureCollection()
	out.Features = DedupeFeatures(all, idProp)
	return out
}

// FindFeature 在集合中按 idProp 查找要素
func FindFeature(fc *geojson.FeatureCollection, idProp, id string) (*geojson.Feature, bool) {
	if fc == nil {
		return nil, false
	}
	for _, f := range fc.Features {
		if v, ok := FeatureID(f, idProp); ok && v == id {
			return f, true
		}
	}
	return nil, false
}

// IsUniformGeometry 判断要素是否全部属于同一几何大类
func IsUniformGeometry(features []*geojson.Feature) (string, bool) {
	family := ""
	for _, f := range features {
		if f == nil {
			continue
		}
		fam := GeometryFamily(f.Geometry)
		if family == "" {
			family = fam
			continue
		}
		if fam != family {
			return "", false
		}
	}
	return family, family != ""
}

// NormalizeFeature 复制来源要素并写入 id、_layerId、_label
func NormalizeFeature(src *geojson.Feature, idProp, layerID, label string) *geojson.Feature {
	f := geojson.NewFeature(src.Geometry)
	f.Properties = src.Properties.Clone()
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	if id, ok := FeatureID(src, idProp); ok {
		f.Properties[PropID] = id
		f.ID = id
	}
	f.Properties[PropLayerID] = layerID
	f.Properties[PropLabel] = label
	return f
}

// GetAllComponentFeatures 将组件按几何表分组的要素展开为一个数组，
// 每个要素写入 project_component_id 并保证 type 为 Feature
func GetAllComponentFeatures(componentID string, tables map[string][]*geojson.Feature) []*geojson.Feature {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*geojson.Feature
	for _, name := range names {
		for _, src := range tables[name] {
			if src == nil {
				continue
			}
			f := *src
			f.Type = "Feature"
			f.Properties = src.Properties.Clone()
			if f.Properties == nil {
				f.Properties = geojson.Properties{}
			}
			f.Properties[PropComponentID] = componentID
			out = append(out, &f)
		}
	}
	return out
}
