package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	readableLogName = "app.log"
	jsonLogName     = "app.json.log"
	timeLayout      = "02.01.2006 - 15:04:05.000000000Z07:00"
)

var (
	globalLogger *zap.Logger
	mu           sync.RWMutex
	once         sync.Once
)

// Init открывает логи в каталоге dir. JSON-лог читает терминальный
// интерфейс, поэтому он очищается при каждом запуске. Неизвестный
// level трактуется как debug.
func Init(dir, level string) {
	once.Do(func() {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			lvl = zapcore.DebugLevel
		}

		jsonPath := JSONLogPath(dir)
		if err := os.Truncate(jsonPath, 0); err != nil && !os.IsNotExist(err) {
			panic(err)
		}

		Set(newFileLogger(filepath.Join(logDir(dir), readableLogName), jsonPath, lvl))
	})
}

// Set подменяет глобальный логгер
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l
}

// GetLogger возвращает глобальный логгер; до Init это no-op
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// JSONLogPath путь к JSON-логу в каталоге dir
func JSONLogPath(dir string) string {
	return filepath.Join(logDir(dir), jsonLogName)
}

func logDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// newFileLogger пишет одни и те же записи в читаемый и JSON файлы
func newFileLogger(readablePath, jsonPath string, level zapcore.Level) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	// Цвет уровня только в читаемом файле, JSON разбирает интерфейс
	readableEnc := enc
	readableEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	jsonEnc := enc
	jsonEnc.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(readableEnc), openSink(readablePath), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonEnc), openSink(jsonPath), level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func openSink(path string) zapcore.WriteSyncer {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic(err)
	}
	return zapcore.AddSync(f)
}
