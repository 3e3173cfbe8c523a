/*
Package upload sends stored pings to the ingestion server.

The Manager receives every ping recorded by the pings database, queues it
and hands it to a single Worker, which runs one job at a time:

	PingsDatabase.RecordPing ──► Manager.Update ──► queue ──► Worker.Work
	                                                           │
	          ┌────────────────────────────────────────────────┘
	          ▼
	    GetUploadTask ─── Upload ──► PrepareRequest ──► Uploader.Post
	          │                                              │
	          ├── Wait (rate limited, cancellable)           ▼
	          │                              ProcessPingUploadResponse
	          └── Done                         2xx        delete ping
	                                           4xx        delete ping
	                                           other      retry at tail

# Uploading windows

A job is one uploading window. It ends when the queue is empty, when
Policy.MaxRecoverableFailures retryable failures happened, or when the rate
limiter kept it waiting more than Policy.MaxWaitAttempts times in a row.
Pings left in the queue are retried the next time the worker is woken.

# Transports

HTTPUploader posts to ServerEndpoint + path. GRPCUploader calls the
Submit method of the glean.ingestion.v1.Ingestion service with the body as
a BytesValue and the path and headers as metadata.
*/
package upload
