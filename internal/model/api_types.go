package model

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterRequest 用户注册请求
type RegisterRequest struct {
	Username         string `json:"username" binding:"required"`
	Password         string `json:"password" binding:"required,min=8"`
	Email            string `json:"email" binding:"required,email"`
	FullName         string `json:"fullName"`
	EmployeeNo       string `json:"employeeNo"`
	DepartmentID     string `json:"departmentId"`
	PractitionerType string `json:"practitionerType"`
	Specialty        string `json:"specialty"`
}

// CreatePrivilegeRequestInput 创建授权申请（草稿）
type CreatePrivilegeRequestInput struct {
	Kind          RequestKind `json:"kind" binding:"required"`
	PrivilegeType string      `json:"privilege_type" binding:"required"`
	Justification string      `json:"justification"`
	PrivilegeIDs  []string    `json:"privilege_ids" binding:"required,min=1"`
}

// UpdatePrivilegeRequestInput 更新草稿/被退回的申请
type UpdatePrivilegeRequestInput struct {
	Kind          RequestKind `json:"kind"`
	PrivilegeType string      `json:"privilege_type"`
	Justification string      `json:"justification"`
	PrivilegeIDs  []string    `json:"privilege_ids"`
}

// PrivilegeDecisionInput 审批时对单个授权项的裁定
type PrivilegeDecisionInput struct {
	RequestPrivilegeID string            `json:"request_privilege_id" binding:"required"`
	Decision           PrivilegeDecision `json:"decision" binding:"required"`
}

// ProcessApprovalInput 审批动作请求体
type ProcessApprovalInput struct {
	Action             ApprovalAction           `json:"action" binding:"required"`
	Comments           string                   `json:"comments"`
	Signature          string                   `json:"signature"`
	PrivilegeDecisions []PrivilegeDecisionInput `json:"privilege_decisions"`
}

// ProcessApprovalResult 审批动作响应
type ProcessApprovalResult struct {
	Message    string         `json:"message"`
	IsComplete bool           `json:"is_complete"`
	NextLevel  *ApprovalLevel `json:"next_level,omitempty"`
}
