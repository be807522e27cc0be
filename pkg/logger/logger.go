package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mghassanj/cbahi-clinical-privileges-sub001/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 基于zap的日志封装：控制台输出人类可读格式，文件输出JSON格式。
// 所有包级函数在Init之前调用都是安全的no-op，单元测试无需初始化日志。

var sugar *zap.SugaredLogger

// Init 按配置初始化日志系统
// output支持 console / file / both，缺省回落到console
func Init(cfg *config.LoggingConfig) error {
	level := parseLevel(cfg.Level)

	toConsole := cfg.Output != "file"
	toFile := cfg.Output == "file" || cfg.Output == "both"

	var cores []zapcore.Core
	if toConsole {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig(true)),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}
	if toFile {
		w, err := openLogFile(cfg.File)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig(false)),
			zapcore.AddSync(w),
			level,
		))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	zap.ReplaceGlobals(base)
	sugar = base.Sugar()

	sugar.Infof("✅ Logger initialized: output=%s, level=%s", cfg.Output, cfg.Level)
	return nil
}

// encoderConfig 编码器配置，控制台带颜色，文件不带
func encoderConfig(color bool) zapcore.EncoderConfig {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if color {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return ec
}

// openLogFile 以追加模式打开日志文件，目录不存在时自动创建
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debugf 格式化调试日志
func Debugf(format string, args ...interface{}) {
	if sugar != nil {
		sugar.Debugf(format, args...)
	}
}

// Info 信息级别日志
func Info(msg string) {
	if sugar != nil {
		sugar.Info(msg)
	}
}

// Infof 格式化信息日志
func Infof(format string, args ...interface{}) {
	if sugar != nil {
		sugar.Infof(format, args...)
	}
}

// Warn 警告级别日志
func Warn(msg string) {
	if sugar != nil {
		sugar.Warn(msg)
	}
}

// Warnf 格式化警告日志
func Warnf(format string, args ...interface{}) {
	if sugar != nil {
		sugar.Warnf(format, args...)
	}
}

// Errorf 格式化错误日志
func Errorf(format string, args ...interface{}) {
	if sugar != nil {
		sugar.Errorf(format, args...)
	}
}

// Fatalf 格式化致命错误日志（输出后退出进程）
func Fatalf(format string, args ...interface{}) {
	if sugar != nil {
		sugar.Fatalf(format, args...)
	}
}

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
