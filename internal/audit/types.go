package audit

// 审计动作常量（每次有意义的状态变更记录一条）
const (
	ActionSubmit               = "submit"
	ActionResubmit             = "resubmit"
	ActionApprove              = "approve"
	ActionReject               = "reject"
	ActionRequestModifications = "request_modifications"
	ActionCancel               = "cancel"
	ActionAutoApprove          = "auto_approve"
	ActionEscalate             = "escalate"
	ActionSweep                = "sweep"
)

// 审计实体类型
const (
	EntityRequest    = "privilege_request"
	EntityStep       = "approval_step"
	EntityEscalation = "escalation"
	EntitySweepRun   = "sweep_run"
)

// Entry 一条业务审计记录
type Entry struct {
	ActorID    string
	ActorName  string
	Action     string
	EntityType string
	EntityID   string
	OldValues  map[string]interface{}
	NewValues  map[string]interface{}
	ClientIP   string
}

// Auditor 业务审计接口
type Auditor interface {
	Record(entry *Entry) error
}
