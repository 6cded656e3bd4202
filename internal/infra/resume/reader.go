package resume

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ReadText はPDF履歴書からプレーンテキストを抽出します
func ReadText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	text := buf.String()
	if text == "" {
		return "", fmt.Errorf("PDF contains no extractable text: %s", path)
	}

	return text, nil
}
