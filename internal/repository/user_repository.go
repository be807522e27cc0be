package repository

import (
	"fmt"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) FindUserByID(id string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindUserByUsername(username string) (*model.User, error) {
	var users []model.User
	result := r.db.Where("username = ?", username).Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	if len(users) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &users[0], nil
}

// FindManager 查找用户的直属上级；没有配置上级时返回 (nil, nil)
func (r *UserRepository) FindManager(user *model.User) (*model.User, error) {
	if user.ManagerID == "" {
		return nil, nil
	}
	var manager model.User
	if err := r.db.Where("id = ?", user.ManagerID).First(&manager).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find manager %s: %w", user.ManagerID, err)
	}
	return &manager, nil
}

// FindActiveUserByRoleAndDepartment 查找指定科室中持有某角色的在职用户（第一个）
func (r *UserRepository) FindActiveUserByRoleAndDepartment(role model.UserRole, departmentID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("role = ? AND department_id = ? AND status = ?", role, departmentID, "active").
		Order("created_at ASC").
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindFirstActiveUserByRole 查找持有某角色的第一个在职用户
// 按创建时间排序保证结果确定；委员会成员没有轮换策略，始终取最早创建的成员
func (r *UserRepository) FindFirstActiveUserByRole(role model.UserRole) (*model.User, error) {
	var user model.User
	err := r.db.Where("role = ? AND status = ?", role, "active").
		Order("created_at ASC").
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateUser(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateLastLogin(userID, ip string) error {
	return r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_time": gorm.Expr("CURRENT_TIMESTAMP"),
			"last_login_ip":   ip,
		}).Error
}
