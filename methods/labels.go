package methods

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 路口标注的缓冲区参数
const (
	IntersectionBufferMeters = 10
	IntersectionBufferSteps  = 10
	LabelSeparator           = " / "
)

// GetIntersectionLabel 取与路口点 10 米缓冲区相交的道路名，去重排序后以 " / " 连接。
// 依赖相关道路已加载到 lines 中，视野外的道路不会出现在结果里
func GetIntersectionLabel(point orb.Point, lines *geojson.FeatureCollection, nameProp string) string {
	if lines == nil {
		return ""
	}
	buffer := CircleBuffer(point, IntersectionBufferMeters, IntersectionBufferSteps)

	seen := make(map[string]struct{})
	var names []string
	for _, f := range lines.Features {
		if f == nil || !Intersects(f.Geometry, buffer) {
			continue
		}
		name, ok := PropertyString(f.Properties[nameProp])
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, LabelSeparator)
}

// FeatureLabel 要素的可读标注：线取道路名，点取相交道路名
func FeatureLabel(f *geojson.Feature, lines *geojson.FeatureCollection, nameProp string) string {
	if f == nil {
		return ""
	}
	if p, ok := f.Geometry.(orb.Point); ok {
		return GetIntersectionLabel(p, lines, nameProp)
	}
	if mp, ok := f.Geometry.(orb.MultiPoint); ok && len(mp) > 0 {
		return GetIntersectionLabel(mp[0], lines, nameProp)
	}
	name, _ := PropertyString(f.Properties[nameProp])
	return name
}
