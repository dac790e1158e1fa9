package methods

// FeatureLink 一个要素被哪些组件引用
type FeatureLink struct {
	ID         string   `json:"id"`
	Components []string `json:"components"`
}

// ComponentFeatureLinks 要素与组件的关联表
type ComponentFeatureLinks struct {
	Features []FeatureLink `json:"features"`
}

// mergeUnique 合并两个字符串数组并去重，保持首次出现顺序
func mergeUnique(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Merge 将 componentIDs 关联到每个 featureID
func (l *ComponentFeatureLinks) Merge(featureIDs, componentIDs []string) {
	for _, fid := range mergeUnique(nil, featureIDs) {
		idx := l.index(fid)
		if idx < 0 {
			l.Features = append(l.Features, FeatureLink{ID: fid, Components: mergeUnique(nil, componentIDs)})
			continue
		}
		l.Features[idx].Components = mergeUnique(l.Features[idx].Components, componentIDs)
	}
}

// RemoveComponent 删除组件在所有要素上的引用，无引用的要素一并移除
func (l *ComponentFeatureLinks) RemoveComponent(componentID string) {
	kept := l.Features[:0]
	for _, link := range l.Features {
		comps := link.Components[:0]
		for _, c := range link.Components {
			if c != componentID {
				comps = append(comps, c)
			}
		}
		link.Components = comps
		if len(comps) > 0 {
			kept = append(kept, link)
		}
	}
	l.Features = kept
}

// ComponentsFor 引用该要素的组件
func (l ComponentFeatureLinks) ComponentsFor(featureID string) []string {
	if idx := l.index(featureID); idx >= 0 {
		return append([]string(nil), l.Features[idx].Components...)
	}
	return nil
}

func (l ComponentFeatureLinks) index(featureID string) int {
	for i, link := range l.Features {
		if link.ID == featureID {
			return i
		}
	}
	return -1
}
