package model

import (
	"time"
)

// UserRole 平台角色
type UserRole string

const (
	RoleStaff           UserRole = "staff"             // 普通医务人员（申请人）
	RoleHeadOfSection   UserRole = "head_of_section"   // 科室组长
	RoleHeadOfDept      UserRole = "head_of_department" // 科室主任
	RoleCommitteeMember UserRole = "committee_member"  // 授权委员会成员
	RoleMedicalDirector UserRole = "medical_director"  // 医疗总监
	RoleHR              UserRole = "hr"                // 人事
	RoleAdmin           UserRole = "admin"             // 系统管理员
)

// User 平台用户（医务人员/审批人）
type User struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EmployeeNo       string     `json:"employeeNo" gorm:"type:varchar(50);uniqueIndex"`
	Username         string     `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	Password         string     `json:"-" gorm:"type:varchar(255);not null"` // 不在JSON中暴露
	Email            string     `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	FullName         string     `json:"fullName" gorm:"type:varchar(100)"`
	Role             UserRole   `json:"role" gorm:"type:varchar(30);default:'staff';index"`
	DepartmentID     string     `json:"departmentId" gorm:"type:varchar(36);index"`
	ManagerID        string     `json:"managerId" gorm:"type:varchar(36);index"` // 直属上级（自引用）
	PractitionerType string     `json:"practitionerType" gorm:"type:varchar(50)"` // physician, dentist, nurse_practitioner...
	Specialty        string     `json:"specialty" gorm:"type:varchar(100)"`
	Status           string     `json:"status" gorm:"type:varchar(20);default:'active';index"` // active, inactive
	LastLoginTime    *time.Time `json:"lastLoginTime" gorm:"type:timestamp"`
	LastLoginIP      string     `json:"lastLoginIp" gorm:"type:varchar(45)"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	// 关联
	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
	Manager    *User       `json:"manager,omitempty" gorm:"foreignKey:ManagerID"`
}

func (User) TableName() string {
	return "users"
}

// IsActive 用户是否在职可用
func (u *User) IsActive() bool {
	return u.Status == "active"
}

// Department 科室
type Department struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code      string    `json:"code" gorm:"type:varchar(50);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	IsActive  bool      `json:"isActive" gorm:"type:boolean;default:true;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Department) TableName() string {
	return "departments"
}
