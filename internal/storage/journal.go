// Package storage 把会话事件写入 SQLite，便于测试结束后排查拦截记录。
package storage

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"cdpharness/internal/logger"
	"cdpharness/pkg/model"
)

// EventRecord 一条拦截事件
type EventRecord struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"index;size:64"`
	TargetID   string `gorm:"size:64"`
	RouteID    string `gorm:"index;size:64"`
	Alias      string `gorm:"size:128"`
	EventType  string `gorm:"index;size:32"`
	URL        string
	Method     string `gorm:"size:16"`
	Stage      string `gorm:"size:16"`
	StatusCode int
	Error      string
	Timestamp  int64 `gorm:"index"`
}

// Options 日志库配置
type Options struct {
	DSN    string
	Prefix string
	Logger logger.Logger
}

// Journal 事件日志库
type Journal struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开（必要时创建）日志库并迁移表结构
func Open(opts Options) (*Journal, error) {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(opts.DSN), &gorm.Config{
		Logger:         NewGormLogger(l).LogMode(gormlogger.Warn),
		NamingStrategy: schema.NamingStrategy{TablePrefix: opts.Prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", opts.DSN, err)
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	l.Debug("事件日志库已打开", "dsn", opts.DSN, "prefix", opts.Prefix)
	return &Journal{db: db, log: l}, nil
}

func toRecord(evt model.Event) *EventRecord {
	rec := &EventRecord{
		SessionID:  string(evt.Session),
		TargetID:   string(evt.Target),
		Alias:      evt.Alias,
		EventType:  evt.Type,
		URL:        evt.URL,
		Method:     evt.Method,
		Stage:      evt.Stage,
		StatusCode: evt.StatusCode,
		Error:      evt.Error,
		Timestamp:  evt.Timestamp,
	}
	if evt.Route != nil {
		rec.RouteID = string(*evt.Route)
	}
	return rec
}

// Record 写入一条事件
func (j *Journal) Record(ctx context.Context, evt model.Event) error {
	ctx = WithSession(ctx, string(evt.Session))
	if err := j.db.WithContext(ctx).Create(toRecord(evt)).Error; err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Run 持续写入事件直到通道关闭或上下文结束
func (j *Journal) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := j.Record(ctx, evt); err != nil {
				j.log.Err(err, "写入事件失败", "session", string(evt.Session))
			}
		case <-ctx.Done():
			return
		}
	}
}

// BySession 按时间顺序返回会话的全部事件
func (j *Journal) BySession(ctx context.Context, id model.SessionID) ([]EventRecord, error) {
	var out []EventRecord
	err := j.db.WithContext(WithSession(ctx, string(id))).
		Where("session_id = ?", string(id)).
		Order("timestamp, id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return out, nil
}

// Summary 统计会话中每种事件的数量
func (j *Journal) Summary(ctx context.Context, id model.SessionID) (map[string]int64, error) {
	var rows []struct {
		EventType string
		Count     int64
	}
	err := j.db.WithContext(WithSession(ctx, string(id))).
		Model(&EventRecord{}).
		Select("event_type, count(*) as count").
		Where("session_id = ?", string(id)).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarize events: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.EventType] = r.Count
	}
	return out, nil
}

// Close 关闭数据库连接
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
