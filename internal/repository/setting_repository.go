package repository

import (
	"strconv"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"gorm.io/gorm"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// keyColumn 根据数据库类型返回带正确引号的key列名
func (r *SettingRepository) keyColumn() string {
	if r.db.Dialector.Name() == "postgres" {
		return "\"key\""
	}
	return "`key`"
}

// Get 读取设置值；key不存在时返回空字符串
func (r *SettingRepository) Get(key string) (string, error) {
	var setting model.Setting
	err := r.db.Where(r.keyColumn()+" = ?", key).First(&setting).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

// GetBool 读取布尔设置；key不存在或值非法时返回默认值
func (r *SettingRepository) GetBool(key string, defaultValue bool) bool {
	value, err := r.Get(key)
	if err != nil || value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetInt 读取整数设置；key不存在或值非法时返回默认值
func (r *SettingRepository) GetInt(key string, defaultValue int) int {
	value, err := r.Get(key)
	if err != nil || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// Set 写入设置（存在则更新，不存在则创建）
func (r *SettingRepository) Set(key, value, category, valueType string) error {
	var setting model.Setting
	err := r.db.Where(r.keyColumn()+" = ?", key).First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(&model.Setting{
			Key:      key,
			Value:    value,
			Category: category,
			Type:     valueType,
		}).Error
	}
	if err != nil {
		return err
	}
	return r.db.Model(&setting).Update("value", value).Error
}

// ListByCategory 按分类列出设置
func (r *SettingRepository) ListByCategory(category string) ([]model.Setting, error) {
	var settings []model.Setting
	query := r.db.Model(&model.Setting{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Order("id ASC").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}
