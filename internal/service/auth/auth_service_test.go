package auth

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/model"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *AuthService {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}); err != nil {
		t.Fatalf("迁移用户表失败: %v", err)
	}

	return NewAuthService(repository.NewUserRepository(db), "test-secret")
}

func registerUser(t *testing.T, svc *AuthService, username, password string) *model.User {
	t.Helper()

	user, err := svc.Register(&model.RegisterRequest{
		Username:   username,
		Password:   password,
		Email:      username + "@hospital.test",
		FullName:   username,
		EmployeeNo: "EMP-" + uuid.New().String(),
	})
	if err != nil {
		t.Fatalf("注册用户失败: %v", err)
	}
	return user
}

// TestRegister 测试注册规则
func TestRegister(t *testing.T) {
	svc := newTestService(t)

	user := registerUser(t, svc, "doctor_wang", "secret-pass-1")
	if user.Role != model.RoleStaff {
		t.Errorf("新用户角色 = %s, expected staff", user.Role)
	}
	if user.Password == "secret-pass-1" {
		t.Errorf("密码必须加密存储")
	}

	if _, err := svc.Register(&model.RegisterRequest{
		Username: "doctor_wang",
		Password: "another-pass",
	}); err == nil {
		t.Fatalf("重复用户名应当注册失败")
	}
}

// TestLogin 测试登录与Token签发
func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"正确的用户名和密码", "doctor_li", "secret-pass-2", false},
		{"密码错误", "doctor_li", "wrong-pass", true},
		{"用户不存在", "nobody", "secret-pass-2", true},
	}

	svc := newTestService(t)
	registerUser(t, svc, "doctor_li", "secret-pass-2")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Login(&model.LoginRequest{
				Username: tt.username,
				Password: tt.password,
			}, "127.0.0.1")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Login() 应当失败")
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() error: %v", err)
			}
			if resp.Token == "" {
				t.Fatalf("登录成功应返回Token")
			}

			claims, err := svc.ValidateToken(resp.Token)
			if err != nil {
				t.Fatalf("ValidateToken() error: %v", err)
			}
			if claims.Username != tt.username {
				t.Errorf("Token中的用户名 = %s, expected %s", claims.Username, tt.username)
			}
			if claims.Role != string(model.RoleStaff) {
				t.Errorf("Token中的角色 = %s, expected staff", claims.Role)
			}
		})
	}
}

// TestLoginInactiveUser 测试停用账号不能登录
func TestLoginInactiveUser(t *testing.T) {
	svc := newTestService(t)
	user := registerUser(t, svc, "doctor_zhao", "secret-pass-3")

	user.Status = "inactive"
	if err := svc.repo.UpdateUser(user); err != nil {
		t.Fatalf("停用用户失败: %v", err)
	}

	if _, err := svc.Login(&model.LoginRequest{
		Username: "doctor_zhao",
		Password: "secret-pass-3",
	}, "127.0.0.1"); err == nil {
		t.Fatalf("停用账号登录应当失败")
	}
}

// TestValidateTokenRejectsTampered 测试篡改的Token校验失败
func TestValidateTokenRejectsTampered(t *testing.T) {
	svc := newTestService(t)
	user := registerUser(t, svc, "doctor_sun", "secret-pass-4")

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	other := NewAuthService(svc.repo, "different-secret")
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("不同密钥签发的Token应当校验失败")
	}

	if _, err := svc.ValidateToken(token + "x"); err == nil {
		t.Fatalf("被篡改的Token应当校验失败")
	}
}
