package authflow

import "context"

type contextKey uint8

const (
	ctxKeyDeviceID contextKey = iota
	ctxKeyClientIP
	ctxKeySessionTag
)

// WithDeviceID attaches the originating device identifier to the context.
// It is copied into every analytics event recorded for calls made with ctx.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, ctxKeyDeviceID, deviceID)
}

// WithClientIP attaches the client IP address to the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// WithSessionTag attaches an opaque caller-defined session tag to the context.
// It surfaces in analytics event metadata.
func WithSessionTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, ctxKeySessionTag, tag)
}

func deviceIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKeyDeviceID).(string)
	return v
}

func clientIPFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKeyClientIP).(string)
	return v
}

func sessionTagFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKeySessionTag).(string)
	return v
}
