package logger

import "log/slog"

// Error records a single error under the key "error". Nil yields an empty
// attr so callers can pass errors through unconditionally.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// EventID records a webhook event identifier.
func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

// EventType records a webhook event type.
func EventType(t string) slog.Attr {
	return slog.String("event_type", t)
}

// SubscriptionID records a local subscription identifier.
func SubscriptionID(id string) slog.Attr {
	return slog.String("subscription_id", id)
}

// ReferenceID records the key a subscription is filed under.
func ReferenceID(id string) slog.Attr {
	return slog.String("reference_id", id)
}

// UserID records a local user identifier.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// Component records the emitting component name.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
