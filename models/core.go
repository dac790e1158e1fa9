package models

import (
	"errors"
	"fmt"

	"github.com/GrainArc/MopedMap/config"
	"github.com/GrainArc/MopedMap/logging"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DefaultComponentTypes 初始组件类型
var DefaultComponentTypes = []ComponentType{
	{ComponentName: "Bike Lane", ComponentSubtype: "Protected", LineRepresentation: true},
	{ComponentName: "Bike Lane", ComponentSubtype: "Buffered", LineRepresentation: true},
	{ComponentName: "Bike Lane", ComponentSubtype: "Conventional", LineRepresentation: true},
	{ComponentName: "Sidewalk", LineRepresentation: true},
	{ComponentName: "Shared Use Path", LineRepresentation: true},
	{ComponentName: "Signal", ComponentSubtype: "Traffic", LineRepresentation: false},
	{ComponentName: "Signal", ComponentSubtype: "PHB", LineRepresentation: false},
	{ComponentName: "Intersection Improvement", LineRepresentation: false},
	{ComponentName: "Pedestrian Crossing", LineRepresentation: false},
}

// OpenDB 按配置打开数据库连接
func OpenDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	level := logger.Silent
	if cfg.Log {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Driver != "postgres" {
		// sqlite 单连接，:memory: 库在连接间不共享
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

// InitDB 打开数据库、迁移表结构并写入默认组件类型
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	DB = db
	logging.Info("database ready", "driver", cfg.Driver)
	return db, nil
}

// Migrate 批量迁移所有表
func Migrate(db *gorm.DB) error {
	models := []interface{}{
		&Project{},
		&ComponentType{},
		&ProjectComponent{},
		&ComponentFeature{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	initComponentTypes(db)
	return nil
}

// initComponentTypes 初始化默认组件类型
func initComponentTypes(db *gorm.DB) {
	for _, t := range DefaultComponentTypes {
		var existing ComponentType
		result := db.Where("component_name = ? AND component_subtype = ?", t.ComponentName, t.ComponentSubtype).First(&existing)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			row := t
			if err := db.Create(&row).Error; err != nil {
				logging.Warn("failed to create component type", "name", t.ComponentName, "error", err)
			}
		}
	}
}
