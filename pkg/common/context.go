package common

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyClientIP  contextKey = "client_ip"
)

// WithRequestID tags ctx with the local API request that triggered the work
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID returns the request id set by WithRequestID
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(contextKeyRequestID).(string)
	return requestID, ok && requestID != ""
}

// WithClientIP records the caller address resolved by the auth middleware
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyClientIP, ip)
}

// GetClientIP returns the address set by WithClientIP
func GetClientIP(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(contextKeyClientIP).(string)
	return ip, ok && ip != ""
}

// LogFields returns the request-scoped fields carried by ctx, so work
// done on behalf of an HTTP call can be correlated with its access log.
func LogFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id, ok := GetRequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	if ip, ok := GetClientIP(ctx); ok {
		fields = append(fields, zap.String("client_ip", ip))
	}
	return fields
}
