package casbin

import (
	"sync"

	"github.com/casbin/casbin/v3"
	casbinmodel "github.com/casbin/casbin/v3/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	rediswatcher "github.com/casbin/redis-watcher/v2"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/database"
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/logger"
	pkgredis "github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/redis"
)

var (
	enforcer     *casbin.SyncedCachedEnforcer
	enforcerOnce sync.Once
	enforcerMu   sync.RWMutex // 保护 enforcer 的读写
)

// rbacModel RBAC模型：策略为 角色, 路径, 方法；支持keyMatch2路径通配
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Init 初始化Casbin权限管理器
func Init() error {
	var initErr error
	enforcerOnce.Do(func() {
		initErr = initEnforcer()
	})
	return initErr
}

// initEnforcer 初始化Casbin执行器
func initEnforcer() error {
	// 使用GORM适配器，将策略存储到数据库
	adapter, err := gormadapter.NewAdapterByDB(database.DB)
	if err != nil {
		logger.Errorf("初始化Casbin适配器失败: %v", err)
		return err
	}

	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		logger.Errorf("解析Casbin模型失败: %v", err)
		return err
	}

	// 创建带缓存的同步执行器
	// 注意：SyncedCachedEnforcer 中的 "Synced" 指的是线程同步（thread-safe），不是多机器同步
	// 多机器同步需要通过 Watcher 机制实现（见下方配置）
	enforcer, err = casbin.NewSyncedCachedEnforcer(m, adapter)
	if err != nil {
		logger.Errorf("创建Casbin执行器失败: %v", err)
		return err
	}

	// 设置缓存过期时间（1小时）
	enforcer.SetExpireTime(60 * 60)

	// 配置Watcher实现多机器同步
	// 如果Redis未启用，则无法实现自动同步，需要手动调用ReloadPolicy()
	if pkgredis.IsEnabled() {
		redisClient := pkgredis.GetClient()
		if redisClient == nil {
			logger.Warn("Redis客户端不可用，使用数据库同步模式")
		} else {
			redisOpts := redisClient.Options()
			redisAddr := redisOpts.Addr
			if redisAddr == "" {
				redisAddr = "localhost:6379"
			}

			watcher, err := rediswatcher.NewWatcher(redisAddr, rediswatcher.WatcherOptions{})
			if err != nil {
				logger.Warnf("创建Redis Watcher失败: %v，将使用数据库同步模式（降级）", err)
			} else {
				if err := enforcer.SetWatcher(watcher); err != nil {
					logger.Warnf("设置Watcher失败: %v，将使用数据库同步模式（降级）", err)
				} else {
					// 设置更新回调：当其他实例更新策略时，自动重新加载
					watcher.SetUpdateCallback(func(msg string) {
						logger.Infof("收到策略更新通知: %s，重新加载策略", msg)
						if err := enforcer.LoadPolicy(); err != nil {
							logger.Errorf("重新加载策略失败: %v", err)
						} else {
							enforcer.InvalidateCache()
							logger.Info("策略已重新加载并清除缓存")
						}
					})
					logger.Infof("✅ Redis Watcher已配置（地址: %s），支持多实例权限同步", redisAddr)
				}
			}
		}
	} else {
		logger.Info("ℹ️  Redis未启用，使用数据库同步模式（单机部署或权限变更后需要手动调用ReloadPolicy）")
	}

	// 加载策略
	if err := enforcer.LoadPolicy(); err != nil {
		logger.Errorf("加载Casbin策略失败: %v", err)
		return err
	}

	// 写入默认策略（仅在策略表为空时）
	if err := seedDefaultPolicies(); err != nil {
		logger.Errorf("写入默认Casbin策略失败: %v", err)
		return err
	}

	logger.Info("Casbin权限管理器初始化成功")
	return nil
}

// seedDefaultPolicies 写入默认的角色路由策略
func seedDefaultPolicies() error {
	policies, err := enforcer.GetPolicy()
	if err != nil {
		return err
	}
	if len(policies) > 0 {
		return nil
	}

	defaults := [][]string{
		// 管理员：全部接口
		{"admin", "/api/*", "GET|POST|PUT|DELETE"},
		// 人事：查看升级记录与巡检报告
		{"hr", "/api/escalations", "GET"},
		{"hr", "/api/escalations/*", "GET"},
		// 普通接口由认证中间件放行，授权语义在业务层按步骤审批人校验
	}

	for _, p := range defaults {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return err
		}
	}

	return enforcer.SavePolicy()
}

// GetEnforcer 获取Casbin执行器（线程安全）
func GetEnforcer() *casbin.SyncedCachedEnforcer {
	enforcerMu.RLock()
	if enforcer != nil {
		defer enforcerMu.RUnlock()
		return enforcer
	}
	enforcerMu.RUnlock()

	enforcerMu.Lock()
	defer enforcerMu.Unlock()

	// 双重检查
	if enforcer == nil {
		logger.Warn("Casbin执行器未初始化，尝试初始化...")
		if err := Init(); err != nil {
			logger.Errorf("Casbin执行器初始化失败: %v", err)
			return nil
		}
	}
	return enforcer
}

// Enforce 权限检查：角色是否可以以act方式访问obj
func Enforce(sub, obj, act string) (bool, error) {
	e := GetEnforcer()
	if e == nil {
		return false, nil
	}
	return e.Enforce(sub, obj, act)
}

// ReloadPolicy 重新加载策略（权限更新后调用）
// 如果配置了Watcher，会自动通知其他实例；否则需要手动调用
func ReloadPolicy() error {
	e := GetEnforcer()
	if e == nil {
		return nil
	}

	if err := e.LoadPolicy(); err != nil {
		return err
	}

	// 清除缓存，确保使用最新策略
	e.InvalidateCache()

	return nil
}
