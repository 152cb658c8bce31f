package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrUnknownQueueType = errors.New("unknown queue type")
)

// Payload is the queue-type-specific body of a QueueItem.
type Payload interface {
	QueueType() QueueType
	validate() error
}

type MetadataPayload struct {
	FilePath string `json:"file_path"`
}

func (MetadataPayload) QueueType() QueueType { return QueueTypeMetadata }

func (p MetadataPayload) validate() error {
	if strings.TrimSpace(p.FilePath) == "" {
		return fmt.Errorf("%w: file_path is required", ErrInvalidPayload)
	}
	return nil
}

type VectorPayload struct {
	FileID        int64  `json:"file_id"`
	ThumbnailPath string `json:"thumbnail_path"`
}

func (VectorPayload) QueueType() QueueType { return QueueTypeVector }

func (p VectorPayload) validate() error {
	if p.FileID <= 0 {
		return fmt.Errorf("%w: file_id is required", ErrInvalidPayload)
	}
	return nil
}

type ColorTagPayload struct {
	FileHash      string `json:"file_hash"`
	ThumbnailPath string `json:"thumbnail_path"`
}

func (ColorTagPayload) QueueType() QueueType { return QueueTypeColorTag }

func (p ColorTagPayload) validate() error {
	if strings.TrimSpace(p.FileHash) == "" {
		return fmt.Errorf("%w: file_hash is required", ErrInvalidPayload)
	}
	return nil
}

// EncodePayload serializes a payload. Struct field order is fixed, so equal
// payloads always produce identical bytes for the de-duplication index.
func EncodePayload(p Payload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: nil", ErrInvalidPayload)
	}
	if err := p.validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", p.QueueType(), err)
	}
	return string(data), nil
}

// DecodePayload parses raw according to the queue type discriminant.
func DecodePayload(queueType QueueType, raw string) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch queueType {
	case QueueTypeMetadata:
		var m MetadataPayload
		err = json.Unmarshal([]byte(raw), &m)
		p = m
	case QueueTypeVector:
		var v VectorPayload
		err = json.Unmarshal([]byte(raw), &v)
		p = v
	case QueueTypeColorTag:
		var c ColorTagPayload
		err = json.Unmarshal([]byte(raw), &c)
		p = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueueType, queueType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Decode is a convenience for DecodePayload on a stored item.
func (i *QueueItem) Decode() (Payload, error) {
	return DecodePayload(i.QueueType, i.Payload)
}
