package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GrainArc/MopedMap/models"
	"gorm.io/gorm"
)

var (
	ErrComponentTypeRequired = errors.New("component type is required")
	ErrUnknownComponentType  = errors.New("unknown component type")
)

// ComponentCatalog 组件类型目录，供对话框检索
type ComponentCatalog struct {
	mu    sync.RWMutex
	types []models.ComponentType
}

// NewComponentCatalog 由给定类型创建目录
func NewComponentCatalog(types []models.ComponentType) *ComponentCatalog {
	return &ComponentCatalog{types: append([]models.ComponentType(nil), types...)}
}

// LoadComponentCatalog 从数据库读取组件类型
func LoadComponentCatalog(ctx context.Context, db *gorm.DB) (*ComponentCatalog, error) {
	var types []models.ComponentType
	if err := db.WithContext(ctx).Order("id").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("load component types: %w", err)
	}
	return NewComponentCatalog(types), nil
}

// TypeLabel "名称 - 子类型"
func TypeLabel(t models.ComponentType) string {
	if t.ComponentSubtype == "" {
		return t.ComponentName
	}
	return t.ComponentName + " - " + t.ComponentSubtype
}

// All 全部类型
func (c *ComponentCatalog) All() []models.ComponentType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.ComponentType(nil), c.types...)
}

// Get 按 id 获取类型
func (c *ComponentCatalog) Get(id uint) (models.ComponentType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.types {
		if t.ID == id {
			return t, true
		}
	}
	return models.ComponentType{}, false
}

// Resolve 校验并返回保存时使用的类型
func (c *ComponentCatalog) Resolve(id uint) (models.ComponentType, error) {
	if id == 0 {
		return models.ComponentType{}, ErrComponentTypeRequired
	}
	t, ok := c.Get(id)
	if !ok {
		return models.ComponentType{}, fmt.Errorf("%w: %d", ErrUnknownComponentType, id)
	}
	return t, nil
}

// Search 不区分大小写检索，前缀匹配排在包含匹配之前；query 为空返回全部。limit <= 0 不限制
func (c *ComponentCatalog) Search(query string, limit int) []models.ComponentType {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var prefix, contains []models.ComponentType
	for _, t := range c.types {
		label := strings.ToLower(TypeLabel(t))
		switch {
		case q == "" || strings.HasPrefix(label, q) || strings.HasPrefix(strings.ToLower(t.ComponentSubtype), q):
			prefix = append(prefix, t)
		case strings.Contains(label, q):
			contains = append(contains, t)
		}
	}
	out := append(prefix, contains...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
