package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for RRDP synchronization spans, following OpenTelemetry
// semantic-convention style: a short namespace prefix per concern.
const (
	AttrSessionID    = "rrdp.session_id"
	AttrLocalLabel   = "rrdp.local_label"
	AttrTask         = "rrdp.task"          // notification, snapshot, delta
	AttrNotifyURI    = "rrdp.notify_uri"
	AttrDocURI       = "rrdp.doc_uri"
	AttrRepoSerial   = "rrdp.repo_serial"
	AttrAdvSerial    = "rrdp.advertised_serial"
	AttrSessionUUID  = "rrdp.session_uuid" // the protocol session_id string, not our numeric id
	AttrDecision     = "rrdp.decision"     // none, snapshot, deltas, error
	AttrHTTPStatus   = "rrdp.http_status"
	AttrBytesRead    = "rrdp.bytes_read"
	AttrFileCount    = "rrdp.file_count"
	AttrHashMatch    = "rrdp.hash_match"
	AttrOK           = "rrdp.ok"
)

// Span names for engine operations.
const (
	SpanSessionRun      = "rrdp.session"
	SpanFetchDocument   = "rrdp.fetch_document"
	SpanParseDocument   = "rrdp.parse_document"
	SpanVerifyHash      = "rrdp.verify_hash"
	SpanDispatchPublish = "rrdp.dispatch_publish"
	SpanNotifyDecision  = "rrdp.notify_decision"
)

func SessionID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrSessionID, int64(id))
}

func LocalLabel(label string) attribute.KeyValue {
	return attribute.String(AttrLocalLabel, label)
}

func Task(task string) attribute.KeyValue {
	return attribute.String(AttrTask, task)
}

func NotifyURI(uri string) attribute.KeyValue {
	return attribute.String(AttrNotifyURI, uri)
}

func DocURI(uri string) attribute.KeyValue {
	return attribute.String(AttrDocURI, uri)
}

func RepoSerial(serial uint64) attribute.KeyValue {
	return attribute.Int64(AttrRepoSerial, int64(serial))
}

func AdvertisedSerial(serial uint64) attribute.KeyValue {
	return attribute.Int64(AttrAdvSerial, int64(serial))
}

func SessionUUID(sessionID string) attribute.KeyValue {
	return attribute.String(AttrSessionUUID, sessionID)
}

func Decision(decision string) attribute.KeyValue {
	return attribute.String(AttrDecision, decision)
}

func HTTPStatus(status int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, status)
}

func BytesRead(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesRead, n)
}

func FileCount(n int) attribute.KeyValue {
	return attribute.Int(AttrFileCount, n)
}

func HashMatch(match bool) attribute.KeyValue {
	return attribute.Bool(AttrHashMatch, match)
}

func OK(ok bool) attribute.KeyValue {
	return attribute.Bool(AttrOK, ok)
}

// StartSessionSpan starts the root span covering one session's entire
// lifecycle, from START to its terminal END.
func StartSessionSpan(ctx context.Context, id uint32, localLabel, notifyURI string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSessionRun, trace.WithAttributes(
		SessionID(id),
		LocalLabel(localLabel),
		NotifyURI(notifyURI),
	))
}

// StartDocumentSpan starts a span covering the fetch+parse of a single
// notification/snapshot/delta document.
func StartDocumentSpan(ctx context.Context, name string, id uint32, task, uri string) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(
		SessionID(id),
		Task(task),
		DocURI(uri),
	))
}
