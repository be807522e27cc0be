package privilege

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
)

// TestCreateRequest 测试草稿申请的创建规则
func TestCreateRequest(t *testing.T) {
	t.Run("追加授权必须填写申请理由", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrivilege(t, "PRIV-EXTRA", "extra", "")

		_, err := env.requests.Create(env.applicant, &model.CreatePrivilegeRequestInput{
			Kind:          model.RequestKindAddition,
			PrivilegeType: "extra",
			PrivilegeIDs:  []string{p.ID},
		})
		if !errors.Is(err, ErrJustificationRequired) {
			t.Fatalf("Create() error = %v, expected ErrJustificationRequired", err)
		}
	})

	t.Run("临时授权带理由可以创建", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrivilege(t, "PRIV-TMP", "extra", "")

		request, err := env.requests.Create(env.applicant, &model.CreatePrivilegeRequestInput{
			Kind:          model.RequestKindTemporary,
			PrivilegeType: "extra",
			Justification: "值班期间需要临时开展该项操作",
			PrivilegeIDs:  []string{p.ID},
		})
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if request.Status != model.RequestStatusDraft {
			t.Errorf("新建申请状态 = %s, expected draft", request.Status)
		}
		if len(request.Privileges) != 1 {
			t.Errorf("授权项数量 = %d, expected 1", len(request.Privileges))
		}
		if request.RequestNumber == "" {
			t.Errorf("申请编号不应为空")
		}
	})

	t.Run("已有流转中申请时不能再创建", func(t *testing.T) {
		env := newTestEnv(t)
		env.createDraft(t, model.RequestKindNew, "non_core")

		p := env.createPrivilege(t, "PRIV-2ND", "non_core", "")
		_, err := env.requests.Create(env.applicant, &model.CreatePrivilegeRequestInput{
			Kind:          model.RequestKindNew,
			PrivilegeType: "non_core",
			PrivilegeIDs:  []string{p.ID},
		})
		if !errors.Is(err, ErrActiveRequestExists) {
			t.Fatalf("Create() error = %v, expected ErrActiveRequestExists", err)
		}
	})

	t.Run("引用不存在的授权项时报错", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.requests.Create(env.applicant, &model.CreatePrivilegeRequestInput{
			Kind:          model.RequestKindNew,
			PrivilegeType: "non_core",
			PrivilegeIDs:  []string{uuid.New().String()},
		})
		if err == nil {
			t.Fatalf("引用不存在授权项应当报错")
		}
	})
}

// TestSubmitRequest 测试提交时的审批链构建与状态流转
func TestSubmitRequest(t *testing.T) {
	t.Run("提交后进入待审并建好完整链", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)

		if request.Status != model.RequestStatusPending {
			t.Errorf("提交后状态 = %s, expected pending", request.Status)
		}
		if request.SubmittedAt == nil {
			t.Errorf("提交后 SubmittedAt 不应为空")
		}
		if len(request.Steps) != 4 {
			t.Fatalf("审批链长度 = %d, expected 4", len(request.Steps))
		}
		for _, step := range request.Steps {
			if step.Status != model.StepStatusPending {
				t.Errorf("步骤 %s 状态 = %s, expected pending", step.Level, step.Status)
			}
		}

		// 当前步骤是序号最小的pending步骤（组长级）
		current := env.currentStep(t, request.ID)
		if current.Level != model.LevelHeadOfSection {
			t.Errorf("当前步骤级别 = %s, expected head_of_section", current.Level)
		}

		// 有且仅有首步骤的一条活跃升级记录
		esc, err := env.escalationRepo.FindActiveByStep(current.ID)
		if err != nil {
			t.Fatalf("查询升级记录失败: %v", err)
		}
		if esc == nil {
			t.Fatalf("首步骤应有活跃升级记录")
		}
		count, err := env.escalationRepo.CountActive()
		if err != nil {
			t.Fatalf("统计升级记录失败: %v", err)
		}
		if count != 1 {
			t.Errorf("活跃升级记录数 = %d, expected 1", count)
		}
	})

	t.Run("非申请人提交被拒绝", func(t *testing.T) {
		env := newTestEnv(t)
		draft := env.createDraft(t, model.RequestKindNew, "non_core")

		_, err := env.requests.Submit(draft.ID, env.deptHead)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("Submit() error = %v, expected ErrForbidden", err)
		}
	})

	t.Run("重复提交被拒绝", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)

		_, err := env.requests.Submit(request.ID, env.applicant)
		if !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("Submit() error = %v, expected ErrInvalidStatus", err)
		}
	})

	t.Run("免审配置下提交即批准", func(t *testing.T) {
		env := newTestEnv(t)
		requirement := &model.ApprovalRequirement{
			ID:               uuid.New().String(),
			PractitionerType: "physician",
			PrivilegeType:    "core",
			SpecialtyMatch:   true,
			AutoApprove:      true,
			IsActive:         true,
		}
		if err := env.db.Create(requirement).Error; err != nil {
			t.Fatalf("创建审批要求配置失败: %v", err)
		}

		draft := env.createDraft(t, model.RequestKindNew, "core")
		request, err := env.requests.Submit(draft.ID, env.applicant)
		if err != nil {
			t.Fatalf("Submit() error: %v", err)
		}

		if request.Status != model.RequestStatusApproved {
			t.Errorf("免审提交后状态 = %s, expected approved", request.Status)
		}
		if request.CompletedAt == nil {
			t.Errorf("免审批准后 CompletedAt 不应为空")
		}
		if len(request.Steps) != 0 {
			t.Errorf("免审路径不应生成审批步骤, got %d", len(request.Steps))
		}
		for _, rp := range request.Privileges {
			if rp.Decision != model.PrivilegeDecisionGranted {
				t.Errorf("授权项裁定 = %s, expected granted", rp.Decision)
			}
		}

		count, err := env.escalationRepo.CountActive()
		if err != nil {
			t.Fatalf("统计升级记录失败: %v", err)
		}
		if count != 0 {
			t.Errorf("免审批准后不应有活跃升级记录, got %d", count)
		}
	})
}

// TestCancelRequest 测试取消流转中的申请
func TestCancelRequest(t *testing.T) {
	t.Run("申请人取消后步骤跳过且升级记录取消", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)

		if err := env.requests.Cancel(request.ID, env.applicant); err != nil {
			t.Fatalf("Cancel() error: %v", err)
		}

		reloaded := env.reloadRequest(t, request.ID)
		if reloaded.Status != model.RequestStatusCancelled {
			t.Errorf("取消后状态 = %s, expected cancelled", reloaded.Status)
		}
		for _, step := range reloaded.Steps {
			if step.Status != model.StepStatusSkipped {
				t.Errorf("步骤 %s 状态 = %s, expected skipped", step.Level, step.Status)
			}
		}

		count, err := env.escalationRepo.CountActive()
		if err != nil {
			t.Fatalf("统计升级记录失败: %v", err)
		}
		if count != 0 {
			t.Errorf("取消后不应有活跃升级记录, got %d", count)
		}
	})

	t.Run("无关用户不能取消", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)

		if err := env.requests.Cancel(request.ID, env.deptHead); !errors.Is(err, ErrForbidden) {
			t.Fatalf("Cancel() error = %v, expected ErrForbidden", err)
		}
	})

	t.Run("已结束的申请不能取消", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)
		if err := env.requests.Cancel(request.ID, env.applicant); err != nil {
			t.Fatalf("首次取消失败: %v", err)
		}

		if err := env.requests.Cancel(request.ID, env.applicant); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("重复取消 error = %v, expected ErrInvalidStatus", err)
		}
	})
}
