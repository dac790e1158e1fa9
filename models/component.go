package models

import (
	"time"

	"github.com/paulmach/orb/geojson"
	"gorm.io/datatypes"
)

// Project 项目
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"project_id"`
	ProjectName string    `gorm:"type:varchar(255)" json:"project_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ComponentType 组件类型，组件编辑对话框的可选项
type ComponentType struct {
	ID                 uint   `gorm:"primaryKey" json:"component_type_id"`
	ComponentName      string `gorm:"type:varchar(255);uniqueIndex:idx_component_type" json:"component_name"`
	ComponentSubtype   string `gorm:"type:varchar(255);uniqueIndex:idx_component_type" json:"component_subtype,omitempty"`
	LineRepresentation bool   `json:"line_representation"`
}

// ProjectComponent 已保存的项目组件
type ProjectComponent struct {
	ID                 string             `gorm:"primaryKey;type:varchar(36)" json:"project_component_id"`
	ProjectID          uint               `gorm:"index" json:"project_id"`
	ComponentTypeID    uint               `json:"component_type_id"`
	ComponentName      string             `gorm:"type:varchar(255)" json:"component_name"`
	ComponentSubtype   string             `gorm:"type:varchar(255)" json:"component_subtype,omitempty"`
	Description        string             `gorm:"type:text" json:"description,omitempty"`
	LineRepresentation bool               `json:"line_representation"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Features           []ComponentFeature `gorm:"foreignKey:ComponentID;constraint:OnDelete:CASCADE" json:"-"`
}

// ComponentFeature 组件关联的路网要素，几何以 WKB 存储
type ComponentFeature struct {
	ID           uint           `gorm:"primaryKey;autoIncrement"`
	ComponentID  string         `gorm:"type:varchar(36);index"`
	SourceID     string         `gorm:"type:varchar(64);index"` // CTN_SEGMENT_ID 或 INTERSECTION_ID
	LayerID      string         `gorm:"type:varchar(64)"`       // ctn-lines / ctn-points
	Label        string         `gorm:"type:varchar(255)"`
	GeometryType string         `gorm:"type:varchar(32)"`
	Geom         []byte
	Properties   datatypes.JSON
}

// Component 编辑中的组件（草稿或已提交），不直接落库
type Component struct {
	ID                 string             `json:"id"`
	ProjectID          uint               `json:"project_id"`
	ComponentTypeID    uint               `json:"component_type_id"`
	ComponentName      string             `json:"component_name"`
	ComponentSubtype   string             `json:"component_subtype,omitempty"`
	Description        string             `json:"description,omitempty"`
	LineRepresentation bool               `json:"line_representation"`
	Features           []*geojson.Feature `json:"features"`
}

// Clone 深拷贝要素切片，属性表逐个复制
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	out := *c
	out.Features = make([]*geojson.Feature, 0, len(c.Features))
	for _, f := range c.Features {
		nf := *f
		nf.Properties = f.Properties.Clone()
		out.Features = append(out.Features, &nf)
	}
	return &out
}
