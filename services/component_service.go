package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/GrainArc/MopedMap/methods"
	"github.com/GrainArc/MopedMap/models"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
)

// ComponentStore 组件持久化
type ComponentStore interface {
	SaveComponent(ctx context.Context, c *models.Component) error
	DeleteComponent(ctx context.Context, projectID uint, id string) error
}

type ComponentService struct {
	db *gorm.DB
}

func NewComponentService(db *gorm.DB) *ComponentService {
	return &ComponentService{db: db}
}

// EnsureProject 项目不存在时创建
func (s *ComponentService) EnsureProject(ctx context.Context, projectID uint) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).FirstOrCreate(&p, models.Project{ID: projectID}).Error
	if err != nil {
		return nil, fmt.Errorf("ensure project %d: %w", projectID, err)
	}
	return &p, nil
}

func (s *ComponentService) loadRows(ctx context.Context, projectID uint) ([]models.ProjectComponent, error) {
	var rows []models.ProjectComponent
	err := s.db.WithContext(ctx).
		Preload("Features").
		Where("project_id = ?", projectID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list components of project %d: %w", projectID, err)
	}
	return rows, nil
}

// ListComponents 项目的全部组件
func (s *ComponentService) ListComponents(ctx context.Context, projectID uint) ([]*models.Component, error) {
	rows, err := s.loadRows(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Component, 0, len(rows))
	for _, row := range rows {
		c, err := methods.RowsToComponent(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// GetComponent 获取单个组件
func (s *ComponentService) GetComponent(ctx context.Context, projectID uint, id string) (*models.Component, error) {
	var row models.ProjectComponent
	err := s.db.WithContext(ctx).
		Preload("Features").
		Where("project_id = ? AND id = ?", projectID, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get component %s: %w", id, err)
	}
	return methods.RowsToComponent(row)
}

// ProjectFeatures 项目全部组件要素，每个要素带 project_component_id
func (s *ComponentService) ProjectFeatures(ctx context.Context, projectID uint) (*geojson.FeatureCollection, error) {
	rows, err := s.loadRows(ctx, projectID)
	if err != nil {
		return nil, err
	}
	collections, err := methods.MakeFeatureCollections(rows)
	if err != nil {
		return nil, err
	}
	out := geojson.NewFeatureCollection()
	for _, row := range rows {
		out.Features = append(out.Features, collections[row.ID].Features...)
	}
	return out, nil
}

// SaveComponent 新建或覆盖组件，要素整体替换
func (s *ComponentService) SaveComponent(ctx context.Context, c *models.Component) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("component id is required")
	}
	rows := make([]models.ComponentFeature, 0, len(c.Features))
	for _, f := range c.Features {
		row, err := methods.FeatureToRow(c.ID, f)
		if err != nil {
			return fmt.Errorf("component %s: %w", c.ID, err)
		}
		rows = append(rows, row)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProjectComponent
		err := tx.Where("id = ?", c.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := models.ProjectComponent{
				ID:                 c.ID,
				ProjectID:          c.ProjectID,
				ComponentTypeID:    c.ComponentTypeID,
				ComponentName:      c.ComponentName,
				ComponentSubtype:   c.ComponentSubtype,
				Description:        c.Description,
				LineRepresentation: c.LineRepresentation,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create component %s: %w", c.ID, err)
			}
		case err != nil:
			return fmt.Errorf("load component %s: %w", c.ID, err)
		default:
			if existing.ProjectID != c.ProjectID {
				return fmt.Errorf("%w: %s", ErrUnknownComponent, c.ID)
			}
			err := tx.Model(&existing).Updates(map[string]interface{}{
				"component_type_id":   c.ComponentTypeID,
				"component_name":      c.ComponentName,
				"component_subtype":   c.ComponentSubtype,
				"description":         c.Description,
				"line_representation": c.LineRepresentation,
			}).Error
			if err != nil {
				return fmt.Errorf("update component %s: %w", c.ID, err)
			}
		}

		if err := tx.Where("component_id = ?", c.ID).Delete(&models.ComponentFeature{}).Error; err != nil {
			return fmt.Errorf("clear features of %s: %w", c.ID, err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("insert features of %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// DeleteComponent 删除组件及其要素
func (s *ComponentService) DeleteComponent(ctx context.Context, projectID uint, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("project_id = ? AND id = ?", projectID, id).Delete(&models.ProjectComponent{})
		if result.Error != nil {
			return fmt.Errorf("delete component %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
		}
		if err := tx.Where("component_id = ?", id).Delete(&models.ComponentFeature{}).Error; err != nil {
			return fmt.Errorf("delete features of %s: %w", id, err)
		}
		return nil
	})
}
