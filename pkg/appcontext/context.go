package appcontext

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextId int

const (
	backupTypeKeyId contextId = iota
	runIdKeyId
	categoryKeyId
	requestIdKeyId
)

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKeyId, requestId)
}

func WithRunId(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, runIdKeyId, id)
}

func WithBackupType(ctx context.Context, backupType string) context.Context {
	return context.WithValue(ctx, backupTypeKeyId, backupType)
}

func WithCategory(ctx context.Context, category string) context.Context {
	return context.WithValue(ctx, categoryKeyId, category)
}

func LoggerFromContext(logger logrus.FieldLogger, ctx context.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	result := logger

	if ctxBackupType, ok := ctx.Value(backupTypeKeyId).(string); ok && ctxBackupType != "" {
		result = result.WithField("backup_type", ctxBackupType)
	}

	if ctxRunId, ok := ctx.Value(runIdKeyId).(int64); ok && ctxRunId != 0 {
		result = result.WithField("run_id", ctxRunId)
	}

	if ctxCategory, ok := ctx.Value(categoryKeyId).(string); ok && ctxCategory != "" {
		result = result.WithField("category", ctxCategory)
	}

	if ctxRequestId, ok := ctx.Value(requestIdKeyId).(string); ok && ctxRequestId != "" {
		result = result.WithField("request_id", ctxRequestId)
	}

	return result
}
