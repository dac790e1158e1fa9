package services

import (
	"sync"

	"github.com/GrainArc/MopedMap/methods"
	"github.com/GrainArc/MopedMap/models"
)

// SidebarFeature 侧栏中组件下的一条要素
type SidebarFeature struct {
	Key     string `json:"key"`
	ID      string `json:"id"`
	Layer   string `json:"layer"`
	Label   string `json:"label"`
	Hovered bool   `json:"hovered"`
}

// SidebarItem 侧栏中的一个组件
type SidebarItem struct {
	ComponentID        string           `json:"component_id"`
	Label              string           `json:"label"`
	Description        string           `json:"description,omitempty"`
	LineRepresentation bool             `json:"line_representation"`
	FeatureCount       int              `json:"feature_count"`
	Checked            bool             `json:"checked"`
	Expanded           bool             `json:"expanded"`
	Hovered            bool             `json:"hovered"`
	Features           []SidebarFeature `json:"features,omitempty"`
}

// Sidebar 组件列表的勾选与展开状态
type Sidebar struct {
	mu       sync.Mutex
	checked  map[string]bool
	expanded map[string]bool
}

func NewSidebar() *Sidebar {
	return &Sidebar{checked: map[string]bool{}, expanded: map[string]bool{}}
}

func (s *Sidebar) SetChecked(id string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.checked[id] = true
	} else {
		delete(s.checked, id)
	}
}

func (s *Sidebar) SetExpanded(id string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.expanded[id] = true
	} else {
		delete(s.expanded, id)
	}
}

// ClearChecked 取消全部勾选
func (s *Sidebar) ClearChecked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = map[string]bool{}
}

// Forget 组件删除后清理状态
func (s *Sidebar) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checked, id)
	delete(s.expanded, id)
}

// Items 生成侧栏列表。hoverFeature 命中的组件及要素标记悬停，hoverComponent 标记整个组件
func (s *Sidebar) Items(components []*models.Component, hoverFeature, hoverComponent string) []SidebarItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]SidebarItem, 0, len(components))
	for _, c := range components {
		item := SidebarItem{
			ComponentID: c.ID,
			Label: TypeLabel(models.ComponentType{
				ComponentName:    c.ComponentName,
				ComponentSubtype: c.ComponentSubtype,
			}),
			Description:        c.Description,
			LineRepresentation: c.LineRepresentation,
			FeatureCount:       len(c.Features),
			Checked:            s.checked[c.ID],
			Expanded:           s.expanded[c.ID],
			Hovered:            c.ID == hoverComponent,
		}
		for _, f := range c.Features {
			key := FeatureKey(f)
			hovered := hoverFeature != "" && key == hoverFeature
			if hovered {
				item.Hovered = true
			}
			if !item.Expanded {
				continue
			}
			id, _ := methods.FeatureID(f, methods.PropID)
			label, _ := methods.PropertyString(f.Properties[methods.PropLabel])
			item.Features = append(item.Features, SidebarFeature{
				Key:     key,
				ID:      id,
				Layer:   methods.LayerOf(f),
				Label:   label,
				Hovered: hovered,
			})
		}
		items = append(items, item)
	}
	return items
}
