package services

import "github.com/GrainArc/MopedMap/methods"

const (
	LayerBasemap       = "basemap"
	LayerProjectLines  = "project-lines"
	LayerProjectPoints = "project-points"
	LayerDraftLines    = "draft-lines"
	LayerDraftPoints   = "draft-points"

	// MutedOpacity 编辑时项目图层的透明度
	MutedOpacity = 0.4
)

// LayerSpec 单个渲染图层的声明
type LayerSpec struct {
	ID               string   `json:"id"`
	Source           string   `json:"source"`
	Type             string   `json:"type"`
	Visible          bool     `json:"visible"`
	Interactive      bool     `json:"interactive"`
	Opacity          float64  `json:"opacity"`
	HoverIDs         []string `json:"hover_ids,omitempty"`
	ExcludeComponent string   `json:"exclude_component,omitempty"`
}

// ComposeLayers 根据状态生成图层列表，hovered 为悬停要素 key
func ComposeLayers(s MapState, hovered []string) []LayerSpec {
	mode := ActiveLinkMode(s)
	_, viewing := s.(Viewing)
	_, drawing := s.(Drawing)
	editing := mode != LinkNone

	projectOpacity := 1.0
	if editing {
		projectOpacity = MutedOpacity
	}
	exclude := ""
	if e, ok := editingTarget(s); ok {
		exclude = e
	}

	layers := []LayerSpec{
		{ID: LayerBasemap, Source: LayerBasemap, Type: "raster", Visible: true, Opacity: 1},
	}
	for _, l := range []struct {
		id, source, typ string
	}{
		{LayerProjectLines, "project", "line"},
		{LayerProjectPoints, "project", "circle"},
	} {
		layers = append(layers, LayerSpec{
			ID:               l.id,
			Source:           l.source,
			Type:             l.typ,
			Visible:          true,
			Interactive:      viewing,
			Opacity:          projectOpacity,
			HoverIDs:         hovered,
			ExcludeComponent: exclude,
		})
	}
	for _, l := range []struct {
		id, typ string
		m       LinkMode
	}{
		{methods.LayerLines, "line", LinkLines},
		{methods.LayerPoints, "circle", LinkPoints},
	} {
		active := editing && mode == l.m
		layers = append(layers, LayerSpec{
			ID:          l.id,
			Source:      l.id,
			Type:        l.typ,
			Visible:     active,
			Interactive: active && !drawing,
			Opacity:     1,
			HoverIDs:    hovered,
		})
	}
	for _, l := range []struct {
		id, typ string
		m       LinkMode
	}{
		{LayerDraftLines, "line", LinkLines},
		{LayerDraftPoints, "circle", LinkPoints},
	} {
		active := editing && mode == l.m
		layers = append(layers, LayerSpec{
			ID:          l.id,
			Source:      "draft",
			Type:        l.typ,
			Visible:     active,
			Interactive: active && !drawing,
			Opacity:     1,
			HoverIDs:    hovered,
		})
	}
	return layers
}

// InteractiveLayers 当前可点击的图层 id
func InteractiveLayers(s MapState) map[string]bool {
	out := map[string]bool{}
	for _, l := range ComposeLayers(s, nil) {
		if l.Interactive {
			out[l.ID] = true
		}
	}
	return out
}

func editingTarget(s MapState) (string, bool) {
	switch t := s.(type) {
	case EditingComponent:
		return t.ComponentID, true
	case Drawing:
		return editingTarget(t.Parent)
	}
	return "", false
}
