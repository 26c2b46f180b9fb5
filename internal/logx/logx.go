package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/tabshell/schema"
)

type contextKey int

const (
	tabKey contextKey = iota
	viewKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithTab annotates the logger with the tab id if present.
func WithTab(ctx context.Context, tabID schema.TabID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// WithTabView annotates the logger with tab and view index.
func WithTabView(ctx context.Context, tabID schema.TabID, viewIndex int) pslog.Logger {
	log := WithTab(ctx, tabID)
	if current, ok := ctx.Value(viewKey).(int); ok && current == viewIndex {
		return log
	}
	return log.With("view_index", viewIndex)
}

// WithAction annotates the logger with a tab action type.
func WithAction(log pslog.Logger, action schema.TabActionType) pslog.Logger {
	if action != "" {
		log = log.With("action", action)
	}
	return log
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithTabView stores tab/view markers on the context for log de-duplication.
func ContextWithTabView(ctx context.Context, tabID schema.TabID, viewIndex int) context.Context {
	ctx = ContextWithTab(ctx, tabID)
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, viewKey, viewIndex)
}

// ContextWithTabLogger attaches the logger and tab marker to the context.
func ContextWithTabLogger(ctx context.Context, log pslog.Logger, tabID schema.TabID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithTab(ctx, tabID)
}

// CopyContextFields copies tab/view markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if tab, ok := src.Value(tabKey).(schema.TabID); ok && tab != "" {
		dst = ContextWithTab(dst, tab)
	}
	if view, ok := src.Value(viewKey).(int); ok {
		dst = context.WithValue(dst, viewKey, view)
	}
	return dst
}
