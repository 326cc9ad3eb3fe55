package bridge

import "strings"

// Status classifies a bridge reply.
type Status int

const (
	StatusOK Status = iota
	StatusNotInstalled
	StatusVersionTooOld
	StatusUpdateRequired
	StatusNotGranted
	StatusSecurityError
	StatusNoData
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotInstalled:
		return "not_installed"
	case StatusVersionTooOld:
		return "version_too_old"
	case StatusUpdateRequired:
		return "update_required"
	case StatusNotGranted:
		return "not_granted"
	case StatusSecurityError:
		return "security_error"
	case StatusNoData:
		return "no_data"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Sentinel replies.
const (
	replyNotInstalled   = "HC_NOT_INSTALLED"
	replyTooOld         = "ANDROID_TOO_OLD"
	replyUpdateRequired = "HC_UPDATE_REQUIRED"
	replyInitOK         = "INIT_OK"
	replyAllGranted     = "ALL_GRANTED"
	replySecurityError  = "SECURITY_ERROR"
	replyErrorPrefix    = "ERROR"
	replyNullMarker     = "NULL"
)

// Result is a decoded bridge reply. Payload holds the body of an OK reply,
// Detail the raw text of any other reply.
type Result struct {
	Status  Status
	Payload string
	Detail  string
}

// OK reports whether the reply carries usable data.
func (r Result) OK() bool { return r.Status == StatusOK }

func ok(payload string) Result { return Result{Status: StatusOK, Payload: payload} }

func fail(s Status, raw string) Result { return Result{Status: s, Detail: raw} }

// DecodeInit classifies the reply of MethodInit.
func DecodeInit(raw string) Result {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == replyNotInstalled:
		return fail(StatusNotInstalled, raw)
	case raw == replyTooOld:
		return fail(StatusVersionTooOld, raw)
	case strings.HasPrefix(raw, replyUpdateRequired):
		return fail(StatusUpdateRequired, raw)
	case strings.HasPrefix(raw, replyInitOK):
		return ok(raw)
	}
	return fail(StatusError, raw)
}

// DecodePermissions classifies the reply of MethodCheckPermissions.
func DecodePermissions(raw string) Result {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, replyAllGranted):
		return ok(raw)
	case strings.HasPrefix(raw, replyErrorPrefix):
		return fail(StatusError, raw)
	}
	return fail(StatusNotGranted, raw)
}

// DecodeWrite classifies the reply of a write method: anything mentioning
// ERROR or NULL is a failure.
func DecodeWrite(raw string) Result {
	if strings.Contains(raw, replyErrorPrefix) || strings.Contains(raw, replyNullMarker) {
		return fail(StatusError, raw)
	}
	return ok(raw)
}

// DecodeRead classifies the reply of a read method. isNoData recognises the
// metric specific no-data sentinels.
func DecodeRead(raw string, isNoData func(string) bool) Result {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == replySecurityError:
		return fail(StatusSecurityError, trimmed)
	case isNoData != nil && isNoData(trimmed):
		return fail(StatusNoData, trimmed)
	case strings.HasPrefix(trimmed, replyErrorPrefix):
		return fail(StatusError, trimmed)
	}
	return ok(trimmed)
}
