package privilege

import (
	"errors"
	"testing"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
)

// TestApproveAdvancesChain 测试逐级通过直到全部批准
func TestApproveAdvancesChain(t *testing.T) {
	env := newTestEnv(t)
	request := env.submitNewRequest(t)

	approvers := []*model.User{env.sectionHead, env.deptHead, env.committee, env.director}
	levels := []model.ApprovalLevel{
		model.LevelHeadOfSection,
		model.LevelHeadOfDept,
		model.LevelCommittee,
		model.LevelMedicalDirector,
	}

	for i, approver := range approvers {
		step := env.currentStep(t, request.ID)
		if step.Level != levels[i] {
			t.Fatalf("第 %d 级当前步骤 = %s, expected %s", i+1, step.Level, levels[i])
		}

		result, err := env.approvals.Process(step.ID, approver, &model.ProcessApprovalInput{
			Action:   model.ActionApprove,
			Comments: "同意",
		})
		if err != nil {
			t.Fatalf("第 %d 级审批失败: %v", i+1, err)
		}

		last := i == len(approvers)-1
		if result.IsComplete != last {
			t.Fatalf("第 %d 级 IsComplete = %v, expected %v", i+1, result.IsComplete, last)
		}

		reloaded := env.reloadRequest(t, request.ID)
		count, err := env.escalationRepo.CountActive()
		if err != nil {
			t.Fatalf("统计升级记录失败: %v", err)
		}

		if !last {
			if reloaded.Status != model.RequestStatusInReview {
				t.Errorf("第 %d 级通过后状态 = %s, expected in_review", i+1, reloaded.Status)
			}
			if result.NextLevel == nil || *result.NextLevel != levels[i+1] {
				t.Errorf("第 %d 级通过后 NextLevel = %v, expected %s", i+1, result.NextLevel, levels[i+1])
			}
			// 任一时刻至多一条活跃升级记录，且指向新的当前步骤
			if count != 1 {
				t.Errorf("第 %d 级通过后活跃升级记录数 = %d, expected 1", i+1, count)
			}
			next := env.currentStep(t, request.ID)
			esc, err := env.escalationRepo.FindActiveByStep(next.ID)
			if err != nil {
				t.Fatalf("查询升级记录失败: %v", err)
			}
			if esc == nil {
				t.Errorf("第 %d 级通过后新当前步骤应有活跃升级记录", i+1)
			}
		} else {
			if reloaded.Status != model.RequestStatusApproved {
				t.Errorf("终审通过后状态 = %s, expected approved", reloaded.Status)
			}
			if reloaded.CompletedAt == nil {
				t.Errorf("终审通过后 CompletedAt 不应为空")
			}
			if count != 0 {
				t.Errorf("终审通过后活跃升级记录数 = %d, expected 0", count)
			}
			for _, rp := range reloaded.Privileges {
				if rp.Decision != model.PrivilegeDecisionGranted {
					t.Errorf("授权项裁定 = %s, expected granted", rp.Decision)
				}
			}
		}
	}
}

// TestProcessGuards 测试审批动作的前置校验
func TestProcessGuards(t *testing.T) {
	t.Run("非指定审批人操作被拒绝", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)
		step := env.currentStep(t, request.ID)

		_, err := env.approvals.Process(step.ID, env.deptHead, &model.ProcessApprovalInput{
			Action: model.ActionApprove,
		})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("Process() error = %v, expected ErrForbidden", err)
		}

		// 状态没有任何变化
		after := env.currentStep(t, request.ID)
		if after.ID != step.ID || after.Status != model.StepStatusPending {
			t.Errorf("被拒绝的操作不应改变步骤状态")
		}
	})

	t.Run("管理员可以代为审批", func(t *testing.T) {
		env := newTestEnv(t)
		admin := env.createUser(t, "admin", model.RoleAdmin, "")
		request := env.submitNewRequest(t)
		step := env.currentStep(t, request.ID)

		if _, err := env.approvals.Process(step.ID, admin, &model.ProcessApprovalInput{
			Action: model.ActionApprove,
		}); err != nil {
			t.Fatalf("管理员审批失败: %v", err)
		}
	})

	t.Run("后级审批人不能越过前级处理自己的步骤", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)

		// 前三级都还pending时，医疗总监直接处理自己的终审步骤
		var directorStep model.ApprovalStep
		if err := env.db.Where("request_id = ? AND level = ?", request.ID, model.LevelMedicalDirector).
			First(&directorStep).Error; err != nil {
			t.Fatalf("查询总监步骤失败: %v", err)
		}

		_, err := env.approvals.Process(directorStep.ID, env.director, &model.ProcessApprovalInput{
			Action: model.ActionApprove,
		})
		if !errors.Is(err, ErrNotCurrentStep) {
			t.Fatalf("越序审批 error = %v, expected ErrNotCurrentStep", err)
		}

		// 越序的拒绝同样被挡下
		_, err = env.approvals.Process(directorStep.ID, env.director, &model.ProcessApprovalInput{
			Action:   model.ActionReject,
			Comments: "越序拒绝",
		})
		if !errors.Is(err, ErrNotCurrentStep) {
			t.Fatalf("越序拒绝 error = %v, expected ErrNotCurrentStep", err)
		}

		// 申请和所有步骤保持原状
		reloaded := env.reloadRequest(t, request.ID)
		if reloaded.Status != model.RequestStatusPending {
			t.Errorf("越序操作后申请状态 = %s, expected pending", reloaded.Status)
		}
		if reloaded.CompletedAt != nil {
			t.Errorf("越序操作不应终结申请")
		}
		for _, s := range reloaded.Steps {
			if s.Status != model.StepStatusPending {
				t.Errorf("步骤 %s 状态 = %s, expected pending", s.Level, s.Status)
			}
		}

		// 当前步骤正常处理不受影响
		current := env.currentStep(t, request.ID)
		if _, err := env.approvals.Process(current.ID, env.sectionHead, &model.ProcessApprovalInput{
			Action: model.ActionApprove,
		}); err != nil {
			t.Fatalf("当前步骤审批失败: %v", err)
		}
	})

	t.Run("重复审批同一步骤报已处理", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)
		step := env.currentStep(t, request.ID)

		if _, err := env.approvals.Process(step.ID, env.sectionHead, &model.ProcessApprovalInput{
			Action: model.ActionApprove,
		}); err != nil {
			t.Fatalf("首次审批失败: %v", err)
		}

		_, err := env.approvals.Process(step.ID, env.sectionHead, &model.ProcessApprovalInput{
			Action:   model.ActionReject,
			Comments: "重复操作",
		})
		if !errors.Is(err, ErrAlreadyProcessed) {
			t.Fatalf("重复审批 error = %v, expected ErrAlreadyProcessed", err)
		}

		// 第一次的结果不被覆盖
		reloaded, err := env.stepRepo.FindByID(step.ID)
		if err != nil {
			t.Fatalf("查询步骤失败: %v", err)
		}
		if reloaded.Status != model.StepStatusApproved {
			t.Errorf("步骤状态 = %s, expected approved", reloaded.Status)
		}
	})

	t.Run("拒绝必须填写审批意见", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)
		step := env.currentStep(t, request.ID)

		_, err := env.approvals.Process(step.ID, env.sectionHead, &model.ProcessApprovalInput{
			Action: model.ActionReject,
		})
		if !errors.Is(err, ErrCommentsRequired) {
			t.Fatalf("Process() error = %v, expected ErrCommentsRequired", err)
		}
	})

	t.Run("未知动作报错", func(t *testing.T) {
		env := newTestEnv(t)
		request := env.submitNewRequest(t)
		step := env.currentStep(t, request.ID)

		_, err := env.approvals.Process(step.ID, env.sectionHead, &model.ProcessApprovalInput{
			Action: "escalate",
		})
		if !errors.Is(err, ErrInvalidAction) {
			t.Fatalf("Process() error = %v, expected ErrInvalidAction", err)
		}
	})
}

// TestReject 测试任一级拒绝即终止整个流程
func TestReject(t *testing.T) {
	env := newTestEnv(t)
	request := env.submitNewRequest(t)

	// 前两级通过，委员会拒绝
	for _, approver := range []*model.User{env.sectionHead, env.deptHead} {
		step := env.currentStep(t, request.ID)
		if _, err := env.approvals.Process(step.ID, approver, &model.ProcessApprovalInput{
			Action: model.ActionApprove,
		}); err != nil {
			t.Fatalf("前置审批失败: %v", err)
		}
	}

	step := env.currentStep(t, request.ID)
	if step.Level != model.LevelCommittee {
		t.Fatalf("当前步骤 = %s, expected committee", step.Level)
	}

	result, err := env.approvals.Process(step.ID, env.committee, &model.ProcessApprovalInput{
		Action:   model.ActionReject,
		Comments: "资质材料不足",
	})
	if err != nil {
		t.Fatalf("拒绝失败: %v", err)
	}
	if !result.IsComplete {
		t.Errorf("拒绝后 IsComplete 应为 true")
	}

	reloaded := env.reloadRequest(t, request.ID)
	if reloaded.Status != model.RequestStatusRejected {
		t.Errorf("拒绝后状态 = %s, expected rejected", reloaded.Status)
	}
	if reloaded.CompletedAt == nil {
		t.Errorf("拒绝后 CompletedAt 不应为空")
	}

	// 医疗总监级被跳过，不再有机会审批
	statusByLevel := map[model.ApprovalLevel]model.StepStatus{}
	for _, s := range reloaded.Steps {
		statusByLevel[s.Level] = s.Status
	}
	if statusByLevel[model.LevelCommittee] != model.StepStatusRejected {
		t.Errorf("委员会步骤状态 = %s, expected rejected", statusByLevel[model.LevelCommittee])
	}
	if statusByLevel[model.LevelMedicalDirector] != model.StepStatusSkipped {
		t.Errorf("医疗总监步骤状态 = %s, expected skipped", statusByLevel[model.LevelMedicalDirector])
	}

	for _, rp := range reloaded.Privileges {
		if rp.Decision != model.PrivilegeDecisionDenied {
			t.Errorf("授权项裁定 = %s, expected denied", rp.Decision)
		}
	}

	count, err := env.escalationRepo.CountActive()
	if err != nil {
		t.Fatalf("统计升级记录失败: %v", err)
	}
	if count != 0 {
		t.Errorf("拒绝后活跃升级记录数 = %d, expected 0", count)
	}

	// 被拒绝的总监步骤无法再审批
	var directorStep model.ApprovalStep
	if err := env.db.Where("request_id = ? AND level = ?", request.ID, model.LevelMedicalDirector).
		First(&directorStep).Error; err != nil {
		t.Fatalf("查询总监步骤失败: %v", err)
	}
	if _, err := env.approvals.Process(directorStep.ID, env.director, &model.ProcessApprovalInput{
		Action: model.ActionApprove,
	}); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("已跳过步骤审批 error = %v, expected ErrAlreadyProcessed", err)
	}
}

// TestRequestModifications 测试退回修改与重新提交复用审批链
func TestRequestModifications(t *testing.T) {
	env := newTestEnv(t)
	request := env.submitNewRequest(t)

	// 组长通过，主任退回修改
	step := env.currentStep(t, request.ID)
	if _, err := env.approvals.Process(step.ID, env.sectionHead, &model.ProcessApprovalInput{
		Action: model.ActionApprove,
	}); err != nil {
		t.Fatalf("组长审批失败: %v", err)
	}

	deptStep := env.currentStep(t, request.ID)
	result, err := env.approvals.Process(deptStep.ID, env.deptHead, &model.ProcessApprovalInput{
		Action:   model.ActionRequestModifications,
		Comments: "请补充操作例数证明",
	})
	if err != nil {
		t.Fatalf("退回修改失败: %v", err)
	}
	if result.IsComplete {
		t.Errorf("退回修改后 IsComplete 应为 false")
	}

	reloaded := env.reloadRequest(t, request.ID)
	if reloaded.Status != model.RequestStatusDraft {
		t.Errorf("退回后状态 = %s, expected draft", reloaded.Status)
	}

	// 步骤保持pending（同一审批人将重新审阅），但升级记录已取消
	afterStep, err := env.stepRepo.FindByID(deptStep.ID)
	if err != nil {
		t.Fatalf("查询步骤失败: %v", err)
	}
	if afterStep.Status != model.StepStatusPending {
		t.Errorf("退回后步骤状态 = %s, expected pending", afterStep.Status)
	}
	if afterStep.Comments == "" {
		t.Errorf("退回意见应记录在步骤上")
	}
	count, err := env.escalationRepo.CountActive()
	if err != nil {
		t.Fatalf("统计升级记录失败: %v", err)
	}
	if count != 0 {
		t.Errorf("退回后活跃升级记录数 = %d, expected 0", count)
	}

	// 重复退回同一申请只有一次生效
	if _, err := env.approvals.Process(deptStep.ID, env.deptHead, &model.ProcessApprovalInput{
		Action:   model.ActionRequestModifications,
		Comments: "重复退回",
	}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("重复退回 error = %v, expected ErrInvalidStatus", err)
	}

	// 重新提交：复用已有审批链，回到审批中，当前步骤重新计时
	resubmitted, err := env.requests.Submit(request.ID, env.applicant)
	if err != nil {
		t.Fatalf("重新提交失败: %v", err)
	}
	if resubmitted.Status != model.RequestStatusInReview {
		t.Errorf("重新提交后状态 = %s, expected in_review（组长级已通过）", resubmitted.Status)
	}
	if len(resubmitted.Steps) != 4 {
		t.Errorf("重新提交不应重建审批链, steps = %d", len(resubmitted.Steps))
	}

	current := env.currentStep(t, request.ID)
	if current.ID != deptStep.ID {
		t.Errorf("重新提交后当前步骤应仍是主任级的原步骤")
	}
	esc, err := env.escalationRepo.FindActiveByStep(current.ID)
	if err != nil {
		t.Fatalf("查询升级记录失败: %v", err)
	}
	if esc == nil {
		t.Fatalf("重新提交后当前步骤应有新的活跃升级记录")
	}
	if esc.Tier1Sent || esc.Tier2Sent || esc.Tier3Sent {
		t.Errorf("新升级记录的发送标记应全部为未发送")
	}

	// 主任这次通过，流程继续向委员会推进
	if _, err := env.approvals.Process(deptStep.ID, env.deptHead, &model.ProcessApprovalInput{
		Action: model.ActionApprove,
	}); err != nil {
		t.Fatalf("主任二次审批失败: %v", err)
	}
	if next := env.currentStep(t, request.ID); next.Level != model.LevelCommittee {
		t.Errorf("当前步骤 = %s, expected committee", next.Level)
	}
}
