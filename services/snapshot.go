package services

import (
	"github.com/GrainArc/MopedMap/methods"
	"github.com/GrainArc/MopedMap/models"
	"github.com/paulmach/orb/geojson"
)

// 渲染数据源名称
const (
	SourceProject = "project"
	SourceDraft   = "draft"
)

// Snapshot 推送给前端的完整编辑器状态
type Snapshot struct {
	ProjectID     uint                                  `json:"project_id"`
	State         StateView                             `json:"state"`
	NeedsLinkMode bool                                  `json:"needs_link_mode"`
	Layers        []LayerSpec                           `json:"layers"`
	Sources       map[string]*geojson.FeatureCollection `json:"sources"`
	Draft         *models.Component                     `json:"draft,omitempty"`
	Components    []*models.Component                   `json:"components"`
	Selected      []*geojson.Feature                    `json:"selected"`
	Clicked       *geojson.Feature                      `json:"clicked,omitempty"`
	Links         methods.ComponentFeatureLinks         `json:"links"`
	Sidebar       []SidebarItem                         `json:"sidebar"`
	Fetching      map[string]bool                       `json:"fetching"`
	Camera        []CameraCommand                       `json:"camera,omitempty"`
}

type cameraQueue interface {
	DrainCommands() []CameraCommand
}

// Snapshot 当前状态快照，已提交组件按指针共享，不会被原地修改
func (e *ComponentEditor) Snapshot() Snapshot {
	e.mu.Lock()
	s := Snapshot{
		ProjectID:  e.opts.ProjectID,
		State:      Describe(e.state),
		Layers:     ComposeLayers(e.state, e.hoverKeysLocked()),
		Draft:      e.draft.Clone(),
		Components: append([]*models.Component(nil), e.components...),
		Selected:   append([]*geojson.Feature(nil), e.selected...),
		Clicked:    e.clicked,
		Links:      copyLinks(e.links),
		Sidebar:    e.sidebar.Items(e.components, e.hoverFeature, e.hoverComponent),
	}
	_, uniform := e.uniformFamilyLocked()
	s.NeedsLinkMode = !uniform
	mode := ActiveLinkMode(e.state)
	e.mu.Unlock()

	s.Sources = map[string]*geojson.FeatureCollection{
		SourceProject: projectCollection(s.Components),
		SourceDraft:   geojson.NewFeatureCollection(),
	}
	if s.Draft != nil {
		s.Sources[SourceDraft].Features = s.Draft.Features
	}
	if mode != LinkNone {
		s.Sources[mode.Layer()] = e.sources[mode.Layer()].Collection()
	}

	e.fetchMu.Lock()
	s.Fetching = make(map[string]bool, len(e.fetching))
	for k, v := range e.fetching {
		s.Fetching[k] = v
	}
	e.fetchMu.Unlock()

	if q, ok := e.opts.View.(cameraQueue); ok {
		s.Camera = q.DrainCommands()
	}
	return s
}

func (e *ComponentEditor) hoverKeysLocked() []string {
	if e.hoverFeature != "" {
		return []string{e.hoverFeature}
	}
	if e.hoverComponent == "" {
		return nil
	}
	c, ok := e.componentLocked(e.hoverComponent)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(c.Features))
	for _, f := range c.Features {
		keys = append(keys, FeatureKey(f))
	}
	return keys
}

// projectCollection 所有组件要素，按来源图层展开并带组件 id
func projectCollection(components []*models.Component) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range components {
		tables := make(map[string][]*geojson.Feature)
		for _, f := range c.Features {
			layer := methods.LayerOf(f)
			tables[layer] = append(tables[layer], f)
		}
		fc.Features = append(fc.Features, methods.GetAllComponentFeatures(c.ID, tables)...)
	}
	return fc
}
