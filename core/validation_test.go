package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateChunk(t *testing.T) {
	valid := &Chunk{
		DocumentId: "doc-1",
		Contents:   "some text",
		Seq:        0,
	}
	if err := ValidateChunk(valid); err != nil {
		t.Fatalf("ValidateChunk() unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr error
	}{
		{
			name:    "nil chunk",
			chunk:   nil,
			wantErr: ErrInvalidChunk,
		},
		{
			name:    "empty contents",
			chunk:   &Chunk{DocumentId: "doc-1"},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "empty document id",
			chunk:   &Chunk{Contents: "text"},
			wantErr: ErrEmptyDocumentId,
		},
		{
			name:    "negative sequence",
			chunk:   &Chunk{DocumentId: "doc-1", Contents: "text", Seq: -1},
			wantErr: ErrNegativeSeq,
		},
		{
			name:    "future timestamp",
			chunk:   &Chunk{DocumentId: "doc-1", Contents: "text", InsertedAt: time.Now().Add(time.Hour)},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)
			if err == nil {
				t.Fatal("ValidateChunk() expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidChunk) {
				t.Errorf("ValidateChunk() error not wrapped in ErrInvalidChunk: %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunk_AccessMetadataNotValidated(t *testing.T) {
	// Tag spelling and role existence are deliberately unchecked.
	chunk := &Chunk{
		DocumentId:   "doc-1",
		Contents:     "text",
		AccessTags:   []string{"NoSuchTag", ""},
		RequiredRole: "NoSuchRole",
	}
	if err := ValidateChunk(chunk); err != nil {
		t.Fatalf("ValidateChunk() rejected access metadata: %v", err)
	}
}
