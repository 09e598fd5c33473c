package kafka

import (
	"context"

	"nfc-kiosk/internal/scan"

	"github.com/segmentio/kafka-go"
)

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StructuredConnectRecord carries its schema inline so a JDBC sink connector
// can consume the topic without a registry.
type StructuredConnectRecord struct {
	Schema  Schema      `json:"schema"`
	Payload scan.Record `json:"payload"`
}

type Schema struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Fields   []Field `json:"fields"`
	Optional bool    `json:"optional"`
}

type Field struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

var StructuredSchema = Schema{
	Type:     "struct",
	Name:     "ScanRecord",
	Optional: false,
	Fields: []Field{
		{Field: "id", Type: "string"},
		{Field: "reader_id", Type: "string"},
		{Field: "uid", Type: "string"},
		{Field: "verified", Type: "boolean"},
		{Field: "student_id", Type: "string"},
		{Field: "student_name", Type: "string"},
		{Field: "department", Type: "string"},
		{Field: "error", Type: "string"},
		{Field: "timestamp", Type: "string"},
		{Field: "scanned_at", Type: "int64"},
	},
}
