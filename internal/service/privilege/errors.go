package privilege

import "errors"

// 工作流的前置条件错误（同步拒绝，不修改任何状态）
var (
	// ErrForbidden 操作人不是步骤的指定审批人（且不是管理员）
	ErrForbidden = errors.New("您不是该审批步骤的指定审批人")

	// ErrAlreadyProcessed 步骤已被处理过（重复提交/并发提交被CAS挡下）
	ErrAlreadyProcessed = errors.New("该审批步骤已被处理")

	// ErrNotCurrentStep 尚未轮到该步骤：同一申请还有序号更小的pending步骤
	ErrNotCurrentStep = errors.New("尚未轮到该步骤审批，请等待前序级别审批完成")

	// ErrCommentsRequired 拒绝/退回修改必须填写意见
	ErrCommentsRequired = errors.New("拒绝或退回修改时必须填写审批意见")

	// ErrActiveRequestExists 申请人已有流转中的申请
	ErrActiveRequestExists = errors.New("您已有一个流转中的授权申请，请先完成或取消")

	// ErrNoApproversConfigured 无法构建审批链（系统中没有配置任何审批人）
	ErrNoApproversConfigured = errors.New("系统中未配置审批人，无法构建审批链，请联系管理员")

	// ErrJustificationRequired 该申请类型必须填写申请理由
	ErrJustificationRequired = errors.New("该申请类型必须填写申请理由")

	// ErrInvalidStatus 申请当前状态不允许该操作
	ErrInvalidStatus = errors.New("申请当前状态不允许该操作")

	// ErrInvalidAction 未知审批动作
	ErrInvalidAction = errors.New("未知的审批动作")
)
