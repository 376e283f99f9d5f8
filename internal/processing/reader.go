package processing

import (
	"fmt"
	"os"
)

// TranscriptReader loads raw transcript content for a session.
type TranscriptReader interface {
	GetContent(provider, filePath, sessionID string) (string, error)
}

// FileReader reads transcripts straight from the local filesystem.
type FileReader struct{}

// GetContent returns the transcript file's content.
func (FileReader) GetContent(provider, filePath, sessionID string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("processing: read transcript for %s: %w", sessionID, err)
	}
	return string(data), nil
}
