package privilege

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
)

// TestBuildChainLevels 测试不同组织关系下审批链包含的级别
func TestBuildChainLevels(t *testing.T) {
	tests := []struct {
		name      string
		arrange   func(t *testing.T, env *testEnv)
		expected  []model.ApprovalLevel
		expectErr error
	}{
		{
			name:    "标准组织关系构建完整四级链",
			arrange: func(t *testing.T, env *testEnv) {},
			expected: []model.ApprovalLevel{
				model.LevelHeadOfSection,
				model.LevelHeadOfDept,
				model.LevelCommittee,
				model.LevelMedicalDirector,
			},
		},
		{
			name: "申请人没有直属上级时跳过组长级",
			arrange: func(t *testing.T, env *testEnv) {
				env.applicant.ManagerID = ""
			},
			expected: []model.ApprovalLevel{
				model.LevelHeadOfDept,
				model.LevelCommittee,
				model.LevelMedicalDirector,
			},
		},
		{
			name: "直属上级不是组长时跳过组长级",
			arrange: func(t *testing.T, env *testEnv) {
				env.applicant.ManagerID = env.deptHead.ID
			},
			expected: []model.ApprovalLevel{
				model.LevelHeadOfDept,
				model.LevelCommittee,
				model.LevelMedicalDirector,
			},
		},
		{
			name: "直属上级已离职时跳过组长级",
			arrange: func(t *testing.T, env *testEnv) {
				if err := env.db.Model(env.sectionHead).Update("status", "inactive").Error; err != nil {
					t.Fatalf("停用组长失败: %v", err)
				}
			},
			expected: []model.ApprovalLevel{
				model.LevelHeadOfDept,
				model.LevelCommittee,
				model.LevelMedicalDirector,
			},
		},
		{
			name: "科室主任本人申请时跳过主任级",
			arrange: func(t *testing.T, env *testEnv) {
				env.applicant = env.deptHead
				env.applicant.ManagerID = ""
			},
			expected: []model.ApprovalLevel{
				model.LevelCommittee,
				model.LevelMedicalDirector,
			},
		},
		{
			name: "所有级别都找不到审批人时报错",
			arrange: func(t *testing.T, env *testEnv) {
				env.applicant.ManagerID = ""
				for _, u := range []*model.User{env.deptHead, env.committee, env.director} {
					if err := env.db.Model(u).Update("status", "inactive").Error; err != nil {
						t.Fatalf("停用审批人失败: %v", err)
					}
				}
			},
			expectErr: ErrNoApproversConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.arrange(t, env)

			request := &model.PrivilegeRequest{
				ID:            uuid.New().String(),
				Kind:          model.RequestKindNew,
				PrivilegeType: "non_core",
				ApplicantID:   env.applicant.ID,
			}

			plan, err := env.chainBuilder.BuildChain(request, env.applicant)
			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Fatalf("BuildChain() error = %v, expected %v", err, tt.expectErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildChain() unexpected error: %v", err)
			}
			if plan.AutoApprove {
				t.Fatalf("BuildChain() 不应命中免审路径")
			}

			if len(plan.Steps) != len(tt.expected) {
				t.Fatalf("链长度 = %d, expected %d", len(plan.Steps), len(tt.expected))
			}
			for i, level := range tt.expected {
				step := plan.Steps[i]
				if step.Level != level {
					t.Errorf("steps[%d].Level = %s, expected %s", i, step.Level, level)
				}
				if step.LevelOrder != level.Ordinal() {
					t.Errorf("steps[%d].LevelOrder = %d, expected %d", i, step.LevelOrder, level.Ordinal())
				}
				if step.Status != model.StepStatusPending {
					t.Errorf("steps[%d].Status = %s, expected pending", i, step.Status)
				}
			}

			// 链上的级别序号严格递增
			for i := 1; i < len(plan.Steps); i++ {
				if plan.Steps[i].LevelOrder <= plan.Steps[i-1].LevelOrder {
					t.Errorf("级别序号未严格递增: %d -> %d",
						plan.Steps[i-1].LevelOrder, plan.Steps[i].LevelOrder)
				}
			}
		})
	}
}

// TestBuildChainApprovers 测试各级步骤指定的审批人
func TestBuildChainApprovers(t *testing.T) {
	env := newTestEnv(t)

	request := &model.PrivilegeRequest{
		ID:            uuid.New().String(),
		Kind:          model.RequestKindNew,
		PrivilegeType: "non_core",
		ApplicantID:   env.applicant.ID,
	}

	plan, err := env.chainBuilder.BuildChain(request, env.applicant)
	if err != nil {
		t.Fatalf("BuildChain() error: %v", err)
	}

	expected := map[model.ApprovalLevel]*model.User{
		model.LevelHeadOfSection:   env.sectionHead,
		model.LevelHeadOfDept:      env.deptHead,
		model.LevelCommittee:       env.committee,
		model.LevelMedicalDirector: env.director,
	}
	for _, step := range plan.Steps {
		approver := expected[step.Level]
		if step.ApproverID != approver.ID {
			t.Errorf("级别 %s 的审批人 = %s, expected %s", step.Level, step.ApproverID, approver.ID)
		}
		if step.ApproverEmail != approver.Email {
			t.Errorf("级别 %s 的审批人邮箱 = %s, expected %s", step.Level, step.ApproverEmail, approver.Email)
		}
	}
}

// TestBuildChainRequirement 测试审批要求配置对链的影响
func TestBuildChainRequirement(t *testing.T) {
	t.Run("核心授权且专业匹配时免审", func(t *testing.T) {
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

		request := &model.PrivilegeRequest{
			ID:            uuid.New().String(),
			Kind:          model.RequestKindNew,
			PrivilegeType: "core",
			ApplicantID:   env.applicant.ID,
			Privileges: []model.RequestPrivilege{
				{Privilege: &model.Privilege{Specialty: env.applicant.Specialty}},
			},
		}

		plan, err := env.chainBuilder.BuildChain(request, env.applicant)
		if err != nil {
			t.Fatalf("BuildChain() error: %v", err)
		}
		if !plan.AutoApprove {
			t.Fatalf("配置免审时 AutoApprove 应为 true")
		}
		if len(plan.Steps) != 0 {
			t.Fatalf("免审路径不应生成步骤, got %d", len(plan.Steps))
		}
	})

	t.Run("专业不匹配时不命中免审配置", func(t *testing.T) {
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

		request := &model.PrivilegeRequest{
			ID:            uuid.New().String(),
			Kind:          model.RequestKindNew,
			PrivilegeType: "core",
			ApplicantID:   env.applicant.ID,
			Privileges: []model.RequestPrivilege{
				{Privilege: &model.Privilege{Specialty: "cardiology"}},
			},
		}

		plan, err := env.chainBuilder.BuildChain(request, env.applicant)
		if err != nil {
			t.Fatalf("BuildChain() error: %v", err)
		}
		if plan.AutoApprove {
			t.Fatalf("专业不匹配时不应免审")
		}
		if len(plan.Steps) != 4 {
			t.Fatalf("无匹配配置时应构建完整链, got %d steps", len(plan.Steps))
		}
	})

	t.Run("配置限定级别时只构建指定级别", func(t *testing.T) {
		env := newTestEnv(t)
		requirement := &model.ApprovalRequirement{
			ID:               uuid.New().String(),
			PractitionerType: "physician",
			PrivilegeType:    "non_core",
			SpecialtyMatch:   false,
			RequiredLevels:   datatypes.JSON(`["committee","medical_director"]`),
			IsActive:         true,
		}
		if err := env.db.Create(requirement).Error; err != nil {
			t.Fatalf("创建审批要求配置失败: %v", err)
		}

		request := &model.PrivilegeRequest{
			ID:            uuid.New().String(),
			Kind:          model.RequestKindNew,
			PrivilegeType: "non_core",
			ApplicantID:   env.applicant.ID,
			Privileges: []model.RequestPrivilege{
				{Privilege: &model.Privilege{Specialty: "cardiology"}},
			},
		}

		plan, err := env.chainBuilder.BuildChain(request, env.applicant)
		if err != nil {
			t.Fatalf("BuildChain() error: %v", err)
		}
		if len(plan.Steps) != 2 {
			t.Fatalf("链长度 = %d, expected 2", len(plan.Steps))
		}
		if plan.Steps[0].Level != model.LevelCommittee || plan.Steps[1].Level != model.LevelMedicalDirector {
			t.Fatalf("链级别 = [%s, %s], expected [committee, medical_director]",
				plan.Steps[0].Level, plan.Steps[1].Level)
		}
	})

	t.Run("配置包含未知级别时报错", func(t *testing.T) {
		env := newTestEnv(t)
		requirement := &model.ApprovalRequirement{
			ID:               uuid.New().String(),
			PractitionerType: "physician",
			PrivilegeType:    "non_core",
			SpecialtyMatch:   false,
			RequiredLevels:   datatypes.JSON(`["board_of_directors"]`),
			IsActive:         true,
		}
		if err := env.db.Create(requirement).Error; err != nil {
			t.Fatalf("创建审批要求配置失败: %v", err)
		}

		request := &model.PrivilegeRequest{
			ID:            uuid.New().String(),
			Kind:          model.RequestKindNew,
			PrivilegeType: "non_core",
			ApplicantID:   env.applicant.ID,
			Privileges: []model.RequestPrivilege{
				{Privilege: &model.Privilege{Specialty: "cardiology"}},
			},
		}

		if _, err := env.chainBuilder.BuildChain(request, env.applicant); err == nil {
			t.Fatalf("未知级别配置应当报错")
		}
	})
}
